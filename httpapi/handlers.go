package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/unkn0wn-root/shopcache"
	"github.com/unkn0wn-root/shopcache/model"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	page, err := s.svc.ListTopRated(ctx, intQuery(r, "page", 1), intQuery(r, "pageSize", s.pageSize))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	p, err := s.svc.GetProduct(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request, u *model.User) {
	var p model.Product
	if err := decode(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	p.ID = ""
	p.User = u.ID
	ctx, cancel := s.ctx(r)
	defer cancel()
	saved, err := s.svc.CreateProduct(ctx, &p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request, _ *model.User) {
	var up shopcache.ProductUpdate
	if err := decode(r, &up); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	p, err := s.svc.UpdateProduct(ctx, mux.Vars(r)["id"], up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request, _ *model.User) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.svc.DeleteProduct(ctx, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product removed"})
}

type reviewBody struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

func (s *Server) addReview(w http.ResponseWriter, r *http.Request, u *model.User) {
	var body reviewBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	_, err := s.svc.AddReview(ctx, mux.Vars(r)["id"], shopcache.ReviewInput{
		UserID: u.ID, UserName: u.Name, Rating: body.Rating, Comment: body.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Review added"})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, u *model.User) {
	var in shopcache.OrderInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	o, err := s.svc.CreateOrder(ctx, u.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request, _ *model.User) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	orders, err := s.svc.ListOrders(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request, u *model.User) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	orders, err := s.svc.ListUserOrders(ctx, u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// ownedOrder loads an order the caller may see: its owner or an admin.
// Other callers get 404 so order ids are not probeable.
func (s *Server) ownedOrder(w http.ResponseWriter, r *http.Request, u *model.User) (*model.Order, bool) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	o, err := s.svc.GetOrder(ctx, mux.Vars(r)["id"])
	if err == nil && o.User != u.ID && !u.IsAdmin {
		err = shopcache.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return o, true
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request, u *model.User) {
	if o, ok := s.ownedOrder(w, r, u); ok {
		writeJSON(w, http.StatusOK, o)
	}
}

func (s *Server) payOrder(w http.ResponseWriter, r *http.Request, u *model.User) {
	var conf model.PaymentResult
	if err := decode(r, &conf); err != nil {
		writeError(w, r, err)
		return
	}
	o, ok := s.ownedOrder(w, r, u)
	if !ok {
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	paid, err := s.svc.SettleOrder(ctx, o.ID, conf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paid)
}

func (s *Server) deliverOrder(w http.ResponseWriter, r *http.Request, _ *model.User) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	o, err := s.svc.MarkDelivered(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request, _ *model.User) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.svc.DeleteOrder(ctx, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order removed"})
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if err := decode(r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	u.ID = ""
	u.IsAdmin = false
	ctx, cancel := s.ctx(r)
	defer cancel()
	saved, err := s.svc.RegisterUser(ctx, &u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// self reports whether u may act on the user in the path.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ *model.User) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	users, err := s.svc.ListUsers(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func self(r *http.Request, u *model.User) bool {
	return u.IsAdmin || mux.Vars(r)["id"] == u.ID
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, u *model.User) {
	if !self(r, u) {
		writeError(w, r, errForbidden)
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	got, err := s.svc.GetUser(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, u *model.User) {
	if !self(r, u) {
		writeError(w, r, errForbidden)
		return
	}
	var up shopcache.UserUpdate
	if err := decode(r, &up); err != nil {
		writeError(w, r, err)
		return
	}
	if !u.IsAdmin {
		up.IsAdmin = nil
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	got, err := s.svc.UpdateUser(ctx, mux.Vars(r)["id"], up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, _ *model.User) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.svc.DeleteUser(ctx, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User removed"})
}
