package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/board"
	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/itemstore"
	"github.com/erazemk/lostfound/internal/model"
)

type testEnv struct {
	handler  http.Handler
	accounts *auth.Accounts
	store    itemstore.Store
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	sessions, err := auth.NewSessions(ctx, database)
	require.NoError(t, err)

	s := itemstore.NewLocal(database)
	accounts := auth.NewAccounts(database, zerolog.Nop())
	handler := NewRouter(RouterParams{
		Board:    board.New(board.BoardParams{Store: s, Logger: zerolog.Nop()}),
		Sessions: sessions,
		Provider: accounts,
		Logger:   zerolog.Nop(),
	})
	return &testEnv{handler: handler, accounts: accounts, store: s}
}

func (e *testEnv) login(t *testing.T, email, name string) string {
	t.Helper()
	_, err := e.accounts.Register(context.Background(), email, name, "password42")
	require.NoError(t, err)

	var token string
	gofight.New().POST("/api/auth/login").
		SetJSON(gofight.D{"email": email, "password": "password42"}).
		Run(e.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusOK, r.Code)
			var resp loginResponse
			require.NoError(t, json.Unmarshal(r.Body.Bytes(), &resp))
			assert.Equal(t, email, resp.Session.Email)
			token = resp.Token
		})
	require.NotEmpty(t, token)
	return token
}

func bearer(token string) gofight.H {
	return gofight.H{"Authorization": "Bearer " + token}
}

func (e *testEnv) create(t *testing.T, token string, name string) model.Item {
	t.Helper()
	var item model.Item
	gofight.New().POST("/api/items").
		SetHeader(bearer(token)).
		SetJSON(gofight.D{"itemName": name, "location": "Library", "contactInfo": "x@example.com", "status": "found"}).
		Run(e.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusCreated, r.Code, r.Body.String())
			require.NoError(t, json.Unmarshal(r.Body.Bytes(), &item))
		})
	return item
}

func TestLogin(t *testing.T) {
	env := setup(t)
	env.login(t, "ana@example.com", "Ana")

	gofight.New().POST("/api/auth/login").
		SetJSON(gofight.D{"email": "ana@example.com", "password": "wrong"}).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusUnauthorized, r.Code)
			assert.JSONEq(t, `{"error":"invalid credentials"}`, r.Body.String())
		})

	gofight.New().POST("/api/auth/login").
		SetJSON(gofight.D{"email": "ana@example.com"}).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
		})
}

func TestSessionAndLogout(t *testing.T) {
	env := setup(t)
	token := env.login(t, "ana@example.com", "Ana")

	gofight.New().GET("/api/auth/session").
		SetHeader(bearer(token)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			var resp sessionResponse
			require.NoError(t, json.Unmarshal(r.Body.Bytes(), &resp))
			require.NotNil(t, resp.Session)
			assert.Equal(t, "ana@example.com", resp.Session.Email)
			assert.Equal(t, "accounts", resp.Provider)
			assert.True(t, resp.RequiresCredentials)
		})

	gofight.New().GET("/api/auth/session").
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			assert.Contains(t, r.Body.String(), `"session":null`)
		})

	gofight.New().POST("/api/auth/logout").
		SetHeader(bearer(token)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusNoContent, r.Code)
		})

	gofight.New().GET("/api/auth/session").
		SetHeader(bearer(token)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusUnauthorized, r.Code)
		})

	gofight.New().POST("/api/auth/logout").
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusUnauthorized, r.Code)
		})
}

func TestInvalidBearer(t *testing.T) {
	env := setup(t)

	for _, header := range []string{"Bearer garbage", "Basic abc"} {
		gofight.New().GET("/api/items").
			SetHeader(gofight.H{"Authorization": header}).
			Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
				assert.Equal(t, http.StatusUnauthorized, r.Code)
			})
	}
}

func TestCreateAndList(t *testing.T) {
	env := setup(t)
	token := env.login(t, "ana@example.com", "Ana")

	item := env.create(t, token, "Wallet")
	assert.Equal(t, "ana@example.com", item.OwnerEmail)
	assert.Equal(t, model.StatusFound, item.Status)

	gofight.New().GET("/api/items").
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			var items []model.Item
			require.NoError(t, json.Unmarshal(r.Body.Bytes(), &items))
			require.Len(t, items, 1)
			assert.Equal(t, item, items[0])
		})

	gofight.New().GET("/api/items?status=lost").
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			assert.JSONEq(t, `[]`, r.Body.String())
		})

	gofight.New().GET("/api/items?status=stolen").
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
		})
}

func TestCreateAnonymous(t *testing.T) {
	env := setup(t)

	gofight.New().POST("/api/items").
		SetJSON(gofight.D{"itemName": "Keys", "location": "Gym", "contactInfo": "555"}).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusCreated, r.Code)
			var item model.Item
			require.NoError(t, json.Unmarshal(r.Body.Bytes(), &item))
			assert.Equal(t, model.Anonymous, item.OwnerID)
			assert.Equal(t, model.StatusLost, item.Status)
		})
}

func TestCreateValidation(t *testing.T) {
	env := setup(t)

	gofight.New().POST("/api/items").
		SetJSON(gofight.D{"itemName": "", "location": "Gym", "contactInfo": "555"}).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
			assert.JSONEq(t, `{"error":"itemName is required","field":"itemName"}`, r.Body.String())
		})

	gofight.New().POST("/api/items").
		SetJSON(gofight.D{"itemName": "Keys", "location": "Gym", "contactInfo": "555", "status": "returned"}).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
		})

	gofight.New().POST("/api/items").
		SetBody("{not json").
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
		})

	items, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMarkReturnedAndDelete(t *testing.T) {
	env := setup(t)
	ana := env.login(t, "ana@example.com", "Ana")
	bob := env.login(t, "bob@example.com", "Bob")
	item := env.create(t, ana, "Umbrella")

	gofight.New().POST("/api/items/"+item.ID+"/returned").
		SetHeader(bearer(bob)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusForbidden, r.Code)
		})

	gofight.New().POST("/api/items/"+item.ID+"/returned").
		SetHeader(bearer(ana)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			var got model.Item
			require.NoError(t, json.Unmarshal(r.Body.Bytes(), &got))
			assert.Equal(t, model.StatusReturned, got.Status)
			assert.NotNil(t, got.ReturnedDate)
		})

	gofight.New().POST("/api/items/"+item.ID+"/returned").
		SetHeader(bearer(ana)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusConflict, r.Code)
		})

	gofight.New().DELETE("/api/items/"+item.ID).
		SetHeader(bearer(bob)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusForbidden, r.Code)
		})

	gofight.New().DELETE("/api/items/"+item.ID).
		SetHeader(bearer(ana)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusNoContent, r.Code)
		})

	gofight.New().DELETE("/api/items/"+item.ID).
		SetHeader(bearer(ana)).
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusNotFound, r.Code)
		})
}

func TestLiveWithoutHub(t *testing.T) {
	env := setup(t)

	gofight.New().GET("/api/items/live").
		Run(env.handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusServiceUnavailable, r.Code)
		})
}

type countingObserver struct {
	calls map[int]int
}

func (c *countingObserver) ObserveRequest(_ string, status int) {
	c.calls[status]++
}

func TestLoggingMiddleware(t *testing.T) {
	observer := &countingObserver{calls: map[int]int{}}
	handler := LoggingMiddleware(zerolog.Nop(), observer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	gofight.New().GET("/").Run(handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})
	gofight.New().GET("/missing").Run(handler, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})

	assert.Equal(t, map[int]int{200: 1, 404: 1}, observer.calls)
}
