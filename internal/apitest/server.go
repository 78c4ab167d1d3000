// Package apitest runs an in-memory implementation of the wardrobe backend
// for tests. It speaks the same REST contract as the real service.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/garderoba/internal/auth"
	"github.com/erazemk/garderoba/internal/model"
)

// Route names accepted by Fail and Requests.
const (
	RouteSignIn         = "POST /auth/signin"
	RouteListItems      = "GET /wardrobe/items"
	RouteAddItem        = "POST /wardrobe/items"
	RouteDeleteItem     = "DELETE /wardrobe/items/{id}"
	RouteFavoriteItem   = "PUT /wardrobe/items/{id}/favorite"
	RouteItemOutfits    = "GET /wardrobe/items/{id}/outfits"
	RouteListOutfits    = "GET /outfits"
	RouteAddOutfit      = "POST /outfits"
	RouteDeleteOutfit   = "DELETE /outfits/{id}"
	RouteFavoriteOutfit = "PUT /outfits/{id}/favorite"
	RouteGenerate       = "POST /chat/generate"
	RouteWeather        = "GET /weather"
	RouteImage          = "GET /images/{name}"
)

const testSecret = "apitest-secret"

type user struct {
	id    string
	email string
	hash  []byte
}

type failure struct {
	status    int
	message   string
	remaining int // -1 fails until cleared
}

type image struct {
	mime string
	data []byte
}

// Server is a fake backend listening on a local httptest server.
type Server struct {
	URL string

	secret string
	srv    *httptest.Server

	mu        sync.Mutex
	users     map[string]user // by email
	items     map[string][]model.Item
	outfits   map[string][]model.Outfit
	images    map[string]image
	weather   model.Weather
	generated *model.GeneratedOutfit
	failures  map[string]failure
	requests  map[string]int
}

// New starts a fake backend that is shut down when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		secret:   testSecret,
		users:    make(map[string]user),
		items:    make(map[string][]model.Item),
		outfits:  make(map[string][]model.Outfit),
		images:   make(map[string]image),
		weather:  model.Weather{Temperature: 18, Condition: "Clear", Location: "Ljubljana"},
		failures: make(map[string]failure),
		requests: make(map[string]int),
	}
	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	public := func(route string, h http.HandlerFunc) {
		mux.Handle(route, s.instrument(route, h))
	}
	private := func(route string, h http.HandlerFunc) {
		mux.Handle(route, s.instrument(route, s.authMiddleware(h)))
	}

	public(RouteSignIn, s.signIn)
	public(RouteImage, s.image)

	private(RouteListItems, s.listItems)
	private(RouteAddItem, s.addItem)
	private(RouteDeleteItem, s.deleteItem)
	private(RouteFavoriteItem, s.favoriteItem)
	private(RouteItemOutfits, s.itemOutfits)

	private(RouteListOutfits, s.listOutfits)
	private(RouteAddOutfit, s.addOutfit)
	private(RouteDeleteOutfit, s.deleteOutfit)
	private(RouteFavoriteOutfit, s.favoriteOutfit)

	private(RouteGenerate, s.generate)
	private(RouteWeather, s.currentWeather)

	return mux
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(email, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.users[email] = user{id: id, email: email, hash: hash}
	s.mu.Unlock()
	return id
}

// Token issues a valid access token for the user.
func (s *Server) Token(userID string) string {
	tok, err := auth.GenerateToken(s.secret, userID, "", time.Hour)
	if err != nil {
		panic(err)
	}
	return tok
}

// SeedItem stores an item for the user, assigning an id if it has none.
func (s *Server) SeedItem(userID string, it model.Item) model.Item {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.UserID = userID

	s.mu.Lock()
	s.items[userID] = append(s.items[userID], it)
	s.mu.Unlock()
	return it
}

// SeedOutfit stores an outfit for the user, assigning an id if it has none.
func (s *Server) SeedOutfit(userID string, o model.Outfit) model.Outfit {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.UserID = userID

	s.mu.Lock()
	s.outfits[userID] = append(s.outfits[userID], o)
	s.mu.Unlock()
	return o
}

// SeedImage serves data under /images/{name} and returns its URL.
func (s *Server) SeedImage(name, mime string, data []byte) string {
	s.mu.Lock()
	s.images[name] = image{mime: mime, data: data}
	s.mu.Unlock()
	return s.URL + "/images/" + name
}

// Items returns the user's items as the backend holds them.
func (s *Server) Items(userID string) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items[userID])
}

// Outfits returns the user's outfits as the backend holds them.
func (s *Server) Outfits(userID string) []model.Outfit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.outfits[userID])
}

// SetWeather changes the conditions reported by the weather endpoint.
func (s *Server) SetWeather(w model.Weather) {
	s.mu.Lock()
	s.weather = w
	s.mu.Unlock()
}

// SetGenerated fixes the generator's answer. With nil it picks one item of
// each main type from the user's wardrobe.
func (s *Server) SetGenerated(g *model.GeneratedOutfit) {
	s.mu.Lock()
	s.generated = g
	s.mu.Unlock()
}

// Fail makes the route answer with status until ClearFailures is called.
func (s *Server) Fail(route string, status int, message string) {
	s.failN(route, status, message, -1)
}

// FailOnce makes only the next request to the route fail.
func (s *Server) FailOnce(route string, status int, message string) {
	s.failN(route, status, message, 1)
}

func (s *Server) failN(route string, status int, message string, n int) {
	s.mu.Lock()
	s.failures[route] = failure{status: status, message: message, remaining: n}
	s.mu.Unlock()
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	clear(s.failures)
	s.mu.Unlock()
}

// Requests returns how many requests the route has received.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// Close stops the server before the test ends.
func (s *Server) Close() {
	s.srv.Close()
}
