// Package route serves the external controller API.
package route

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ttdump/ttdump/common/observable"
	C "github.com/ttdump/ttdump/constant"
	"github.com/ttdump/ttdump/log"
	"github.com/ttdump/ttdump/tunnel"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 3 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Source is the running capture as seen by the controller.
type Source interface {
	Session() uuid.UUID
	Snapshot() []tunnel.Statistic
	Subscribe() (observable.Subscription, error)
	UnSubscribe(observable.Subscription)
}

type Log struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

type server struct {
	secret string
	src    Source
}

// Router returns the controller handler. An empty secret disables
// authentication.
func Router(secret string, src Source) http.Handler {
	s := &server{secret: secret, src: src}

	r := chi.NewRouter()
	cors := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	})
	r.Use(cors.Handler)
	r.Group(func(r chi.Router) {
		r.Use(s.authentication)

		r.Get("/", hello)
		r.Get("/version", version)
		r.Get("/interfaces", s.interfaces)
		r.Get("/dumps", s.dumps)
		r.Get("/logs", getLogs)
	})
	return r
}

// Listen binds the controller address.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve runs the controller on l until ctx is done. Streaming requests
// end with ctx.
func Serve(ctx context.Context, l net.Listener, secret string, src Source) error {
	srv := &http.Server{
		Handler: Router(secret, src),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	log.Infoln("RESTful API listening at: %s", l.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) authentication(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Browser websocket not support custom header
		if websocket.IsWebSocketUpgrade(r) && r.URL.Query().Get("token") != "" {
			token := r.URL.Query().Get("token")
			if token != s.secret {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		text := strings.SplitN(header, " ", 2)

		hasInvalidHeader := text[0] != "Bearer"
		hasInvalidSecret := len(text) != 2 || text[1] != s.secret
		if hasInvalidHeader || hasInvalidSecret {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func hello(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"hello": "ttdump"})
}

func version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"version": C.Version, "buildTime": C.BuildTime})
}

func (s *server) interfaces(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{
		"session":    s.src.Session().String(),
		"interfaces": s.src.Snapshot(),
	})
}

func (s *server) dumps(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := query.Get("interface")

	var limiter *rate.Limiter
	if text := query.Get("rate"); text != "" {
		n, err := strconv.ParseFloat(text, 64)
		if err != nil || n <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrBadRequest)
			return
		}
		limiter = rate.NewLimiter(rate.Limit(n), 1)
	}

	sub, err := s.src.Subscribe()
	if err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrNotFound)
		return
	}
	defer s.src.UnSubscribe(sub)

	stream(w, r, sub, func(elm interface{}) (interface{}, bool) {
		dump := elm.(*tunnel.Dump)
		if name != "" && dump.Interface != name {
			return nil, false
		}
		if limiter != nil && !limiter.Allow() {
			return nil, false
		}
		return dump, true
	})
}

func getLogs(w http.ResponseWriter, r *http.Request) {
	levelText := r.URL.Query().Get("level")
	if levelText == "" {
		levelText = "info"
	}

	level, err := log.ParseLevel(levelText)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrBadRequest)
		return
	}

	sub := log.Subscribe()
	defer log.UnSubscribe(sub)

	stream(w, r, sub, func(elm interface{}) (interface{}, bool) {
		event := elm.(*log.Event)
		if event.LogLevel < level {
			return nil, false
		}
		return Log{Type: event.Type(), Payload: event.Payload}, true
	})
}

// stream writes every item of sub that filter accepts as one JSON
// document, over a websocket when the client asked for one and as
// newline separated chunks otherwise.
func stream(w http.ResponseWriter, r *http.Request, sub observable.Subscription, filter func(interface{}) (interface{}, bool)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wsConn *websocket.Conn
	if websocket.IsWebSocketUpgrade(r) {
		var err error
		wsConn, err = upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer wsConn.Close()

		// the client closing is only noticed by reading
		go func() {
			defer cancel()
			for {
				if _, _, err := wsConn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	buf := &bytes.Buffer{}
	for {
		var elm interface{}
		var ok bool
		select {
		case <-ctx.Done():
			return
		case elm, ok = <-sub:
			if !ok {
				return
			}
		}

		v, accept := filter(elm)
		if !accept {
			continue
		}

		buf.Reset()
		if err := json.NewEncoder(buf).Encode(v); err != nil {
			return
		}

		var err error
		if wsConn == nil {
			_, err = w.Write(buf.Bytes())
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		} else {
			err = wsConn.WriteMessage(websocket.TextMessage, buf.Bytes())
		}
		if err != nil {
			return
		}
	}
}
