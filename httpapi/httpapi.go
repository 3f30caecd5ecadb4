// Package httpapi serves the shop over JSON/HTTP with gorilla/mux.
//
// Callers identify themselves with the X-User-ID header; an upstream
// gateway is expected to authenticate it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/unkn0wn-root/shopcache"
	"github.com/unkn0wn-root/shopcache/model"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

// Service is the subset of *shopcache.Shop the handlers use.
type Service interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, u shopcache.ProductUpdate) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AddReview(ctx context.Context, productID string, in shopcache.ReviewInput) (*model.Product, error)
	ListTopRated(ctx context.Context, page, pageSize int) (*shopcache.ProductPage, error)

	CreateOrder(ctx context.Context, userID string, in shopcache.OrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error)
	ListOrders(ctx context.Context) ([]*model.Order, error)
	SettleOrder(ctx context.Context, orderID string, conf model.PaymentResult) (*model.Order, error)
	MarkDelivered(ctx context.Context, id string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	RegisterUser(ctx context.Context, u *model.User) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, u shopcache.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

var _ Service = (*shopcache.Shop)(nil)

var (
	errUnauthorized = errors.New("not authorized, no user")
	errForbidden    = errors.New("not authorized")
)

type Server struct {
	svc      Service
	pageSize int
	timeout  time.Duration
}

type Options struct {
	PageSize int           // 0 => shop default
	Timeout  time.Duration // per request; 0 => 5s
}

// New builds the routed handler with access logging to log.
func New(svc Service, log zerolog.Logger, opts Options) http.Handler {
	s := &Server{svc: svc, pageSize: opts.PageSize, timeout: opts.Timeout}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	r := mux.NewRouter()
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(s.identify)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products", s.admin(s.createProduct)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", s.getProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.admin(s.updateProduct)).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", s.admin(s.deleteProduct)).Methods(http.MethodDelete)
	api.HandleFunc("/products/{id}/reviews", s.user(s.addReview)).Methods(http.MethodPost)

	api.HandleFunc("/orders", s.user(s.createOrder)).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.admin(s.listOrders)).Methods(http.MethodGet)
	api.HandleFunc("/orders/mine", s.user(s.myOrders)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.user(s.getOrder)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.admin(s.deleteOrder)).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{id}/pay", s.user(s.payOrder)).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}/deliver", s.admin(s.deliverOrder)).Methods(http.MethodPut)

	api.HandleFunc("/users", s.registerUser).Methods(http.MethodPost)
	api.HandleFunc("/users", s.admin(s.listUsers)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.user(s.getUser)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.user(s.updateUser)).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", s.admin(s.deleteUser)).Methods(http.MethodDelete)

	return r
}

// StatusOf maps a shop error to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, shopcache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shopcache.ErrLockContention):
		return http.StatusServiceUnavailable
	case errors.Is(err, shopcache.ErrPaymentCapture):
		return http.StatusPaymentRequired
	case errors.Is(err, shopcache.ErrOutOfStock),
		errors.Is(err, shopcache.ErrAlreadyPaid),
		errors.Is(err, shopcache.ErrAlreadyReviewed),
		errors.Is(err, shopcache.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, shopcache.ErrInvalidInput),
		errors.Is(err, shopcache.ErrNoOrderItems),
		errors.Is(err, shopcache.ErrAdminUser):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Message   string `json:"message"`
	ProductID string `json:"productId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	body := errorBody{Message: err.Error()}
	var oos *shopcache.OutOfStockError
	if errors.As(err, &oos) {
		body.ProductID = oos.ProductID
	}
	var pnf *shopcache.ProductNotFoundError
	if errors.As(err, &pnf) {
		body.ProductID = pnf.ProductID
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		if status == http.StatusInternalServerError {
			body.Message = http.StatusText(status)
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", shopcache.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func intQuery(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
