package cartclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/circuitbreaker"
	"github.com/fjod/cartsync/pkg/logger"
)

func newAPI(t *testing.T, mux *http.ServeMux) (*HTTPService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHTTPService(srv.URL+"/api/", srv.Client(), WithBearerToken("tok-1")), srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestHTTPService_FetchCart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`[{"id":1,"product_id":10,"nom":"Vanille","prix":1500,"quantite":2,"type":"predefined"}]`))
	})
	svc, _ := newAPI(t, mux)

	items, err := svc.FetchCart(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ProductID("10"), items[0].ProductID)
	assert.Equal(t, "Vanille", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestHTTPService_FetchCart_StatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
	})
	svc, _ := newAPI(t, mux)

	_, err := svc.FetchCart(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "db down", se.Message)
}

func TestHTTPService_FetchCart_UnauthorizedIsServerFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentification requise"})
	})
	svc, _ := newAPI(t, mux)

	_, err := svc.FetchCart(context.Background())

	assert.ErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrAuthRequired)
}

func TestHTTPService_FetchCart_BadJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cart":`))
	})
	svc, _ := newAPI(t, mux)

	_, err := svc.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrServer)
}

func TestHTTPService_AddItem(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cart", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12", body["product_id"])
		assert.Equal(t, "Miel", body["nom"])
		assert.EqualValues(t, 2000, body["prix"])
		assert.Equal(t, "pot", body["contenant"])
		assert.Equal(t, "predefined", body["type"])
		assert.EqualValues(t, 1, body["quantite"])

		writeJSON(w, http.StatusOK, domain.CartResponse{
			Message: "Produit ajouté au panier",
			Cart:    []domain.LineItem{{ID: 3, ProductID: "12", Quantity: 1, UnitPrice: 2000}},
		})
	})
	svc, _ := newAPI(t, mux)

	items, err := svc.AddItem(context.Background(), domain.AddItemRequest{
		ProductID: "12", Name: "Miel", UnitPrice: 2000, ContainerType: "pot", Kind: domain.KindPredefined, Quantity: 1,
	})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ID)
}

func TestHTTPService_AddItem_Unauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentification requise"})
	})
	svc, _ := newAPI(t, mux)

	_, err := svc.AddItem(context.Background(), domain.AddItemRequest{ProductID: "12", Quantity: 1})

	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.NotErrorIs(t, err, ErrServer)
}

func TestHTTPService_RemoveProduct(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/cart/product/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "product_7", r.PathValue("id"))
		writeJSON(w, http.StatusOK, domain.CartResponse{Cart: []domain.LineItem{}})
	})
	svc, _ := newAPI(t, mux)

	items, err := svc.RemoveProduct(context.Background(), "product_7")

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHTTPService_UpdateItem(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/cart/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.PathValue("id"))
		raw, _ := io.ReadAll(r.Body)
		var item domain.LineItem
		require.NoError(t, json.Unmarshal(raw, &item))
		assert.Equal(t, 3, item.Quantity)
		assert.Equal(t, "Vanille", item.Name)

		writeJSON(w, http.StatusOK, domain.CartResponse{Cart: []domain.LineItem{item}})
	})
	svc, _ := newAPI(t, mux)

	items, err := svc.UpdateItem(context.Background(), domain.LineItem{ID: 1, ProductID: "10", Name: "Vanille", Quantity: 3})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestHTTPService_LoginStatus(t *testing.T) {
	loggedIn := true
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/login_status", func(w http.ResponseWriter, r *http.Request) {
		if loggedIn {
			writeJSON(w, http.StatusOK, domain.LoginStatus{LoggedIn: true, UserEmail: "a@b.km"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, domain.LoginStatus{LoggedIn: false})
	})
	svc, _ := newAPI(t, mux)

	status, err := svc.LoginStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.LoggedIn)
	assert.Equal(t, "a@b.km", status.UserEmail)

	loggedIn = false
	status, err = svc.LoginStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.LoggedIn)
}

func TestHTTPService_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := NewHTTPService(url, &http.Client{})

	_, err := svc.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrTransport)

	_, err = svc.LoginStatus(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHTTPService_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := NewHTTPService(srv.URL+"/api", &http.Client{Timeout: 30 * time.Millisecond})

	_, err := svc.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrServer)
}

func TestNewHTTPClient_BreakerOpensAsTransportFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewHTTPClient(time.Second, circuitbreaker.Config{ConsecutiveFailures: 2, Timeout: time.Minute}, logger.Discard())
	svc := NewHTTPService(srv.URL+"/api", client)

	for i := 0; i < 2; i++ {
		_, err := svc.FetchCart(context.Background())
		assert.ErrorIs(t, err, ErrServer)
	}

	_, err := svc.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestHTTPService_Login(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok-2"})
	})
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	})
	svc, _ := newAPI(t, mux)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@b.km", "wrong")
	require.ErrorIs(t, err, ErrAuthRequired)

	token, err := svc.Login(ctx, "a@b.km", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	_, err = svc.FetchCart(ctx)
	require.NoError(t, err)
}
