package apitest

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/garderoba/internal/auth"
	"github.com/erazemk/garderoba/internal/model"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type favoriteRequest struct {
	Favorite *bool `json:"favorite"`
}

type outfitRequest struct {
	Items    []model.OutfitItem `json:"items"`
	Occasion string             `json:"occasion"`
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)); err != nil {
		slog.Warn("sign-in failed", "email", req.Email)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(s.secret, u.id, u.email, auth.TokenExpiry)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	jsonResponse(w, http.StatusOK, model.SignInResult{
		UserID:      u.id,
		AccessToken: token,
		Message:     "signed in",
	})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := slices.Clone(s.items[userID(r)])
	s.mu.Unlock()

	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var it model.Item
	if err := decodeJSON(r, &it); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidateItem(it); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	it.ID = uuid.NewString()
	it.UserID = userID(r)

	s.mu.Lock()
	s.items[it.UserID] = append(s.items[it.UserID], it)
	s.mu.Unlock()

	jsonResponse(w, http.StatusCreated, it)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	uid, id := userID(r), r.PathValue("id")
	cascade := r.URL.Query().Get("cascade") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.items[uid], func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	s.items[uid] = slices.Delete(s.items[uid], idx, idx+1)

	if cascade {
		s.outfits[uid] = slices.DeleteFunc(s.outfits[uid], func(o model.Outfit) bool { return o.References(id) })
	}

	jsonMessage(w, http.StatusOK, "item deleted")
}

func (s *Server) favoriteItem(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := decodeJSON(r, &req); err != nil || req.Favorite == nil {
		jsonError(w, http.StatusBadRequest, "favorite required")
		return
	}

	uid, id := userID(r), r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.items[uid], func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	s.items[uid][idx].Favorite = *req.Favorite
	jsonResponse(w, http.StatusOK, s.items[uid][idx])
}

func (s *Server) itemOutfits(w http.ResponseWriter, r *http.Request) {
	uid, id := userID(r), r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, o := range s.outfits[uid] {
		if o.References(id) {
			n++
		}
	}
	jsonResponse(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) listOutfits(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	outfits := slices.Clone(s.outfits[userID(r)])
	s.mu.Unlock()

	if outfits == nil {
		outfits = []model.Outfit{}
	}
	jsonResponse(w, http.StatusOK, outfits)
}

func (s *Server) addOutfit(w http.ResponseWriter, r *http.Request) {
	var req outfitRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now().UTC()
	o := model.Outfit{
		ID:        uuid.NewString(),
		UserID:    userID(r),
		Items:     req.Items,
		Occasion:  req.Occasion,
		CreatedAt: &now,
	}
	if err := model.ValidateOutfit(o); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	s.outfits[o.UserID] = append(s.outfits[o.UserID], o)
	s.mu.Unlock()

	jsonResponse(w, http.StatusCreated, o)
}

func (s *Server) deleteOutfit(w http.ResponseWriter, r *http.Request) {
	uid, id := userID(r), r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.outfits[uid], func(o model.Outfit) bool { return o.ID == id })
	if idx < 0 {
		jsonError(w, http.StatusNotFound, "outfit not found")
		return
	}
	s.outfits[uid] = slices.Delete(s.outfits[uid], idx, idx+1)
	jsonMessage(w, http.StatusOK, "outfit deleted")
}

func (s *Server) favoriteOutfit(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := decodeJSON(r, &req); err != nil || req.Favorite == nil {
		jsonError(w, http.StatusBadRequest, "favorite required")
		return
	}

	uid, id := userID(r), r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.outfits[uid], func(o model.Outfit) bool { return o.ID == id })
	if idx < 0 {
		jsonError(w, http.StatusNotFound, "outfit not found")
		return
	}
	s.outfits[uid][idx].Favorite = *req.Favorite
	jsonResponse(w, http.StatusOK, s.outfits[uid][idx])
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Occasion) == "" {
		jsonError(w, http.StatusBadRequest, "occasion required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generated != nil {
		g := *s.generated
		g.Occasion = req.Occasion
		jsonResponse(w, http.StatusOK, g)
		return
	}

	g := model.GeneratedOutfit{
		Items:       []model.OutfitItem{},
		Occasion:    req.Occasion,
		Description: fmt.Sprintf("%s outfit for %.0f°C and %s", req.Occasion, req.Weather.Temperature, strings.ToLower(req.Weather.Condition)),
	}
	for _, t := range []string{model.ItemTypeTops, model.ItemTypeBottoms, model.ItemTypeShoes} {
		for _, it := range s.items[userID(r)] {
			if it.IsType(t) {
				g.Items = append(g.Items, model.OutfitItem{ItemID: it.ID, Type: t})
				break
			}
		}
	}
	jsonResponse(w, http.StatusOK, g)
}

func (s *Server) currentWeather(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	wx := s.weather
	s.mu.Unlock()
	jsonResponse(w, http.StatusOK, wx)
}

func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	img, ok := s.images[r.PathValue("name")]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", img.mime)
	w.Write(img.data)
}
