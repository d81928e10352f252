package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"personal-connect/internal/auth"
	"personal-connect/internal/catalog"
	"personal-connect/internal/logger"
	"personal-connect/internal/models"
	"personal-connect/internal/models/config"
	"personal-connect/internal/service"
	aluno_service "personal-connect/internal/service/aluno"

	"github.com/go-chi/chi/v5"
)

type ctxKey struct{}

type Handler struct {
	clients  service.ClientFactory
	catalog  *catalog.Catalog
	sessions *sessions
	limiter  *ipLimiters
	log      *logger.Logger
	idleTTL  time.Duration

	// base outlives requests; client subscriptions hang off it.
	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewHandler(clients service.ClientFactory, c *catalog.Catalog, cfg config.AuthConfig, log *logger.Logger) *Handler {
	base, stop := context.WithCancel(context.Background())
	h := &Handler{
		clients:  clients,
		catalog:  c,
		sessions: newSessions(),
		limiter:  newIPLimiters(cfg.SignInRateInterval, cfg.SignInRateBurst),
		log:      log.With("service", "HTTP"),
		idleTTL:  cfg.SessionIdleTTL,
		base:     base,
		stop:     stop,
	}
	if h.idleTTL <= 0 {
		h.idleTTL = defaultSessionIdleTTL
	}
	h.wg.Add(1)
	go h.reap(sweepInterval(h.idleTTL))
	return h
}

const defaultSessionIdleTTL = 30 * time.Minute

func sweepInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	if every > time.Minute {
		every = time.Minute
	}
	if every < time.Second {
		every = time.Second
	}
	return every
}

// reap closes the sessions and rate limiters nobody used for idleTTL.
func (h *Handler) reap(every time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-h.base.Done():
			return
		case now := <-ticker.C:
			h.sweep(now)
		}
	}
}

func (h *Handler) sweep(now time.Time) {
	if n := h.sessions.sweep(now, h.idleTTL); n > 0 {
		h.log.Info("idle sessions closed", "count", n, "open", h.sessions.len())
	}
	h.limiter.sweep(now, h.idleTTL)
}

// Close drops every client session.
func (h *Handler) Close() {
	h.stop()
	h.wg.Wait()
	h.sessions.closeAll()
}

// --- Helper Functions ---

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

type fieldErrorJSON struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// respondWithServiceError maps service errors onto status codes. Reported
// errors carry the alert the client already received.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	var reported *service.ReportedError
	switch {
	case errors.As(err, &verr):
		fields := make([]fieldErrorJSON, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, fieldErrorJSON{Field: f.Field, Message: f.Message})
		}
		respondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation",
			"fields": fields,
		})
	case errors.As(err, &reported):
		code := http.StatusBadGateway
		if auth.IsCategorized(err) && !errors.Is(err, auth.ErrNetworkFailure) {
			code = http.StatusBadRequest
		}
		respondWithJSON(w, code, map[string]string{
			"error": reported.Title,
			"title": reported.Title,
			"body":  reported.Body,
		})
	case errors.Is(err, service.ErrNotAuthenticated):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, aluno_service.ErrStudentNotFound),
		errors.Is(err, aluno_service.ErrRoutineNotFound),
		errors.Is(err, aluno_service.ErrProfileNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, aluno_service.ErrNoStudentSelected),
		errors.Is(err, aluno_service.ErrNoRoutineSelected),
		errors.Is(err, aluno_service.ErrMissingMuscle),
		errors.Is(err, aluno_service.ErrMissingTrainerCredentials):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Ocorreu um erro inesperado.")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, "JSON inválido")
		return false
	}
	return true
}

// photoJSON is an optional inline picture.
type photoJSON struct {
	FotoBase64      string `json:"fotoBase64"`
	FotoContentType string `json:"fotoContentType"`
}

func (p photoJSON) photo() (*service.Photo, error) {
	if p.FotoBase64 == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(p.FotoBase64)
	if err != nil {
		return nil, err
	}
	return &service.Photo{Reader: bytes.NewReader(data), ContentType: p.FotoContentType}, nil
}

func current(r *http.Request) *entry {
	e, _ := r.Context().Value(ctxKey{}).(*entry)
	return e
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// authenticate resolves the bearer token. A client whose identity went away
// is dropped.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		e, ok := h.sessions.get(token)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, service.ErrNotAuthenticated.Error())
			return
		}
		if e.client.Session().Current() == nil {
			h.sessions.remove(token)
			respondWithError(w, http.StatusUnauthorized, service.ErrNotAuthenticated.Error())
			return
		}
		e.touch(time.Now())
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, e)))
	})
}

type loginRequest struct {
	Email string          `json:"email"`
	Senha string          `json:"senha"`
	Tipo  models.UserType `json:"tipo"`
}

type sessionResponse struct {
	Token string          `json:"token"`
	UID   string          `json:"uid"`
	Email string          `json:"email"`
	Tipo  models.UserType `json:"tipo,omitempty"`
}

// Login opens a client session for the credentials.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Tipo != "" && !req.Tipo.Valid() {
		respondWithError(w, http.StatusBadRequest, "Tipo de usuário inválido")
		return
	}

	alerts := newAlertFeed()
	client := h.clients.NewClient(h.base, alerts)
	var cred *auth.Credential
	if req.Tipo == "" {
		cred = client.Session().SignIn(r.Context(), req.Email, req.Senha)
	} else {
		cred = client.Session().SignInAs(r.Context(), req.Email, req.Senha, req.Tipo)
	}
	if cred == nil {
		client.Close()
		a, _ := alerts.last()
		respondWithJSON(w, http.StatusUnauthorized, map[string]string{
			"error": a.Title,
			"title": a.Title,
			"body":  a.Body,
		})
		return
	}

	e := h.sessions.add(client, alerts)
	tipo, err := client.Session().Type(r.Context())
	if err != nil {
		h.log.Warn("read user type", "uid", cred.UID, "error", err)
	}
	h.log.Info("session opened", "uid", cred.UID, "client", client.ID())
	respondWithJSON(w, http.StatusOK, sessionResponse{Token: e.token, UID: cred.UID, Email: cred.Email, Tipo: tipo})
}

// SignUp registers a trainer and opens a session for it.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var form models.PersonalSignUp
	if !decode(w, r, &form) {
		return
	}
	alerts := newAlertFeed()
	client := h.clients.NewClient(h.base, alerts)
	cred, err := client.Session().CreateUser(r.Context(), form)
	if err != nil {
		client.Close()
		h.respondWithServiceError(w, err)
		return
	}
	e := h.sessions.add(client, alerts)
	respondWithJSON(w, http.StatusCreated, sessionResponse{
		Token: e.token, UID: cred.UID, Email: cred.Email, Tipo: models.UserTypePersonal,
	})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	client := h.clients.NewClient(h.base, newAlertFeed())
	defer client.Close()
	if err := client.Session().SendPasswordReset(r.Context(), req.Email); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	e := current(r)
	if err := e.client.Session().SignOut(r.Context()); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.sessions.remove(e.token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session := current(r).client.Session()
	cred := session.Current()
	tipo, err := session.Type(r.Context())
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse{UID: cred.UID, Email: cred.Email, Tipo: tipo})
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, current(r).client.Roster().State())
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	profile := current(r).client.Profile()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"personal": profile.Profile(),
		"loading":  profile.Loading(),
	})
}

type personalUpdateRequest struct {
	models.PersonalUpdate
	photoJSON
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req personalUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	photo, err := req.photo()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Imagem inválida")
		return
	}
	if err := current(r).client.Profile().UpdateProfile(r.Context(), req.PersonalUpdate, photo); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type studentUpdateRequest struct {
	models.StudentUpdate
	photoJSON
}

func (h *Handler) UpdateOwnProfile(w http.ResponseWriter, r *http.Request) {
	var req studentUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	photo, err := req.photo()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Imagem inválida")
		return
	}
	if err := current(r).client.Roster().UpdateOwnProfile(r.Context(), req.StudentUpdate, photo); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type studentCreateRequest struct {
	models.StudentForm
	photoJSON
}

// CreateStudent registers an aluno. Without a senha one is generated and
// mailed to the aluno.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentCreateRequest
	if !decode(w, r, &req) {
		return
	}
	roster := current(r).client.Roster()

	var (
		id  string
		err error
	)
	if req.Senha == "" {
		photo, perr := req.photo()
		if perr != nil {
			respondWithError(w, http.StatusBadRequest, "Imagem inválida")
			return
		}
		id, err = roster.RegisterStudent(r.Context(), req.StudentForm, photo)
	} else {
		id, err = roster.CreateStudent(r.Context(), req.StudentForm)
	}
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) SelectStudent(w http.ResponseWriter, r *http.Request) {
	roster := current(r).client.Roster()
	if err := roster.SelectStudentByID(chi.URLParam(r, "alunoId")); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, roster.State())
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := current(r).client.Roster().Reconcile(r.Context(), chi.URLParam(r, "alunoId"))
	if err != nil && !errors.Is(err, aluno_service.ErrStudentNotFound) && report.Repaired() > 0 {
		h.log.Warn("partial reconcile", "alunoId", report.StudentID, "error", err)
		respondWithJSON(w, http.StatusMultiStatus, report)
		return
	}
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) CreateRoutine(w http.ResponseWriter, r *http.Request) {
	var form models.RoutineForm
	if !decode(w, r, &form) {
		return
	}
	id, err := current(r).client.Roster().CreateRoutine(r.Context(), form)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) SelectRoutine(w http.ResponseWriter, r *http.Request) {
	roster := current(r).client.Roster()
	if err := roster.SelectRoutineByID(chi.URLParam(r, "rotinaId")); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, roster.State())
}

func (h *Handler) SaveExercise(w http.ResponseWriter, r *http.Request) {
	var form models.WorkoutForm
	if !decode(w, r, &form) {
		return
	}
	if err := current(r).client.Roster().SaveExercise(r.Context(), form); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type muscleGroupJSON struct {
	Musculo    string           `json:"musculo"`
	Treinos    []models.Workout `json:"treinos"`
	Exercicios int              `json:"exercicios"`
}

// GroupedWorkouts returns the treinos of the selected routine by muscle.
func (h *Handler) GroupedWorkouts(w http.ResponseWriter, r *http.Request) {
	groups := models.GroupByMuscle(current(r).client.Roster().State().Workouts)
	out := make([]muscleGroupJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, muscleGroupJSON{Musculo: g.Musculo, Treinos: g.Treinos, Exercicios: g.Exercise})
	}
	respondWithJSON(w, http.StatusOK, out)
}

type catalogMuscleJSON struct {
	Musculo    string            `json:"musculo"`
	Exercicios []catalog.Exercise `json:"exercicios"`
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	var out []catalogMuscleJSON
	for _, m := range h.catalog.Muscles() {
		out = append(out, catalogMuscleJSON{Musculo: m, Exercicios: h.catalog.Exercises(m)})
	}
	respondWithJSON(w, http.StatusOK, out)
}
