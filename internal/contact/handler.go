package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/catalogguard/internal/auth"
	"github.com/2beens/catalogguard/internal/middleware"
	"github.com/2beens/catalogguard/internal/ratelimit"
	"github.com/2beens/catalogguard/internal/telemetry/metrics"
	"github.com/2beens/catalogguard/internal/telemetry/tracing"
	"github.com/2beens/catalogguard/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const submitTooManyMsgFormat = "Too many contact form submissions. Please try again in %d minutes."

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=contact_test

type messagesRepo interface {
	Add(ctx context.Context, msg *Message) (*Message, error)
	List(ctx context.Context, onlyUnread bool) ([]Message, error)
	MarkRead(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

type SubmitResponse struct {
	Success bool `json:"success"`
	ID      int  `json:"id"`
}

type ListResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}

type Handler struct {
	repo           messagesRepo
	metricsManager *metrics.Manager
	// ability to inject time (for unit testing)
	NowFunc func() time.Time
}

func NewHandler(repo messagesRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
		NowFunc:        time.Now,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	tokenService *auth.TokenService,
) {
	submitRateLimit := middleware.RateLimit(
		rateLimiter,
		"contact",
		ratelimit.ContactLimit,
		submitTooManyMsgFormat,
		handler.metricsManager,
	)
	mainRouter.
		Handle("/api/contact", submitRateLimit(http.HandlerFunc(handler.HandleSubmit))).
		Methods("POST", "OPTIONS").Name("contact-submit")

	adminRouter := mainRouter.PathPrefix("/api/admin/contacts").Subrouter()
	adminRouter.
		HandleFunc("", middleware.RequireAdmin(tokenService, handler.HandleList)).
		Methods("GET").Name("contacts-list")
	adminRouter.
		HandleFunc("/{id}/read", middleware.RequireAdmin(tokenService, handler.HandleMarkRead)).
		Methods("PUT").Name("contacts-mark-read")
	adminRouter.
		HandleFunc("/{id}", middleware.RequireAdmin(tokenService, handler.HandleDelete)).
		Methods("DELETE").Name("contacts-delete")
}

func (handler *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "contactHandler.submit")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var submission Submission
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			log.Tracef("contact submit, unmarshal json params: %s", err)
			pkg.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Tracef("contact submit, parse form: %s", err)
			pkg.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		submission = Submission{
			Name:    r.Form.Get("name"),
			Email:   r.Form.Get("email"),
			Subject: r.Form.Get("subject"),
			Message: r.Form.Get("message"),
		}
	}

	clean, err := Sanitize(submission)
	if err != nil {
		span.SetStatus(codes.Error, "invalid-submission")
		pkg.WriteJSONError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	added, err := handler.repo.Add(ctx, &Message{
		Name:      clean.Name,
		Email:     clean.Email,
		Subject:   clean.Subject,
		Message:   clean.Message,
		ClientKey: pkg.ReadClientKey(r),
		CreatedAt: handler.NowFunc(),
	})
	if err != nil {
		log.Errorf("failed to add contact message from [%s]: %s", clean.Email, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "add-failed")
		pkg.WriteJSONError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterContactMessages.Inc()
	}
	span.SetAttributes(attribute.Int("contact.id", added.ID))
	span.SetStatus(codes.Ok, "added")
	log.Debugf("new contact message added: %d", added.ID)

	pkg.WriteJSON(w, http.StatusCreated, SubmitResponse{Success: true, ID: added.ID})
}

// validationMessage drops the sentinel prefix, the rest is safe to show to the client.
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), ErrInvalidSubmission.Error()+": ")
	if msg == "" || msg == err.Error() {
		return "Invalid submission"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "contactHandler.list")
	defer span.End()

	onlyUnread := r.URL.Query().Get("unread") == "true"
	messages, err := handler.repo.List(ctx, onlyUnread)
	if err != nil {
		log.Errorf("list contact messages: %s", err)
		span.RecordError(err)
		pkg.WriteJSONError(w, http.StatusInternalServerError, "Failed to get messages")
		return
	}

	if len(messages) == 0 {
		messages = []Message{}
	}

	pkg.WriteJSON(w, http.StatusOK, ListResponse{
		Messages: messages,
		Total:    len(messages),
	})
}

func (handler *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "contactHandler.markRead")
	defer span.End()

	id, ok := readID(w, r)
	if !ok {
		return
	}

	if err := handler.repo.MarkRead(ctx, id); err != nil {
		writeRepoError(w, "mark read", id, err)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, pkg.SuccessResponse{Success: true})
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "contactHandler.delete")
	defer span.End()

	id, ok := readID(w, r)
	if !ok {
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		writeRepoError(w, "delete", id, err)
		return
	}

	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		log.Infof("contact message %d deleted by [%s]", id, principal.Username)
	}
	pkg.WriteJSON(w, http.StatusOK, pkg.SuccessResponse{Success: true})
}

func readID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		pkg.WriteJSONError(w, http.StatusBadRequest, "Invalid message id")
		return 0, false
	}
	return id, true
}

func writeRepoError(w http.ResponseWriter, op string, id int, err error) {
	if errors.Is(err, ErrMessageNotFound) {
		pkg.WriteJSONError(w, http.StatusNotFound, "Message not found")
		return
	}
	log.Errorf("contact message %s [%d]: %s", op, id, err)
	pkg.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
}
