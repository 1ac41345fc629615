package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/exercisetracker/internal/exlog"
	"github.com/2beens/exercisetracker/internal/telemetry/metrics"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
	"github.com/2beens/exercisetracker/pkg"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	service   *Service
	listCache *ListCache
	metrics   *metrics.Manager
}

func NewHandler(
	service *Service,
	listCache *ListCache,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		service:   service,
		listCache: listCache,
		metrics:   metrics,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/api/users", handler.HandleCreate).Methods("POST", "OPTIONS").Name("new-user")
	r.HandleFunc("/api/users", handler.HandleList).Methods("GET", "OPTIONS").Name("list-users")
	r.HandleFunc("/api/users/{id}/exercises", handler.HandleAddExercise).Methods("POST", "OPTIONS").Name("new-exercise")
	r.HandleFunc("/api/users/{id}/logs", handler.HandleLogs).Methods("GET", "OPTIONS").Name("get-logs")
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.new")
	defer span.End()

	params, err := readParams(r)
	if err != nil {
		log.Tracef("new user, read params: %s", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := handler.service.CreateUser(ctx, params["username"])
	if err != nil {
		handler.handleServiceErr(w, "create user", err)
		return
	}

	handler.listCache.Invalidate()
	handler.metrics.CounterUsers.Inc()

	log.Debugf("new user created: [%s] %s", summary.ID, summary.Username)
	writeJSON(w, http.StatusCreated, summary)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.list")
	defer span.End()

	if cached, ok := handler.listCache.Get(); ok {
		log.Tracef("users list served from cache: %d users", len(cached))
		writeJSON(w, http.StatusOK, cached)
		return
	}

	summaries, err := handler.service.ListUsers(ctx)
	if err != nil {
		handler.handleServiceErr(w, "list users", err)
		return
	}

	handler.listCache.Set(summaries)
	writeJSON(w, http.StatusOK, summaries)
}

func (handler *Handler) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.exercises.new")
	defer span.End()

	params, err := readParams(r)
	if err != nil {
		log.Tracef("new exercise, read params: %s", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := handler.service.AppendExercise(ctx, AppendInput{
		UserID:      mux.Vars(r)["id"],
		Description: params["description"],
		Duration:    params["duration"],
		Date:        params["date"],
	})
	if err != nil {
		handler.handleServiceErr(w, "add exercise", err)
		return
	}

	handler.metrics.CounterExercises.Inc()
	writeJSON(w, http.StatusCreated, record)
}

func (handler *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.logs")
	defer span.End()

	query := r.URL.Query()
	logResp, err := handler.service.QueryLog(ctx, mux.Vars(r)["id"], exlog.Query{
		From:  query.Get("from"),
		To:    query.Get("to"),
		Limit: query.Get("limit"),
	})
	if err != nil {
		handler.handleServiceErr(w, "get logs", err)
		return
	}

	writeJSON(w, http.StatusOK, logResp)
}

func (handler *Handler) handleServiceErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrUsernameRequired) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := exlog.KindOf(err)
	switch {
	case exlog.IsValidation(err):
		log.Debugf("%s, invalid input: %s", op, err)
		handler.metrics.CounterValidationErrors.WithLabelValues(string(kind)).Inc()
		writeError(w, http.StatusBadRequest, exlog.Message(err))
	case kind == exlog.KindNotFound:
		log.Debugf("%s: %s", op, err)
		writeError(w, http.StatusNotFound, exlog.Message(err))
	default:
		log.Errorf("%s failed [%s]: %s", op, kind, err)
		writeError(w, http.StatusInternalServerError, exlog.Message(err))
	}
}

// readParams collects the request parameters from either a JSON body or an
// url-encoded form. JSON numbers are kept in their text form.
func readParams(r *http.Request) (map[string]string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		params := make(map[string]string, len(body))
		for k, v := range body {
			switch val := v.(type) {
			case string:
				params[k] = val
			case float64:
				params[k] = strconv.FormatFloat(val, 'f', -1, 64)
			case bool:
				params[k] = strconv.FormatBool(val)
			}
		}
		return params, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	return params, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	respJson, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, status)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respJson, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		http.Error(w, message, status)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, status)
}
