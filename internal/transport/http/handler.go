package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"onboarding/internal/dto"
	"onboarding/internal/flow"
	"onboarding/internal/observability/metrics"
	"onboarding/internal/observability/middleware"
	"onboarding/internal/session"

	"github.com/ajg/form"
	"github.com/go-chi/render"
)

const maxFormBytes = 64 << 10

var stepPaths = map[flow.Step]string{
	flow.StepLogin:            "/auth/login",
	flow.StepRegister:         "/auth/register",
	flow.StepVerifyOTP:        "/auth/verify-otp",
	flow.StepCompleteProfile:  "/auth/complete-profile",
	flow.StepDashboard:        "/dashboard",
	flow.StepResetPassword:    "/auth/reset-password",
	flow.StepResetVerifyOTP:   "/auth/reset-password/verify-otp",
	flow.StepResetNewPassword: "/auth/reset-password/new-password",
}

// StepPath returns the route a step is served on.
func StepPath(step flow.Step) string {
	if p, ok := stepPaths[step]; ok {
		return p
	}
	return "/"
}

// View is the JSON body of a rendered step.
type View struct {
	Step   flow.Step         `json:"step"`
	Errors map[string]string `json:"errors,omitempty"`
	Notice string            `json:"notice,omitempty"`
	Data   map[string]any    `json:"data,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	Flow     *flow.Controller
	Sessions *session.Manager
}

func NewHandler(f *flow.Controller, sessions *session.Manager) *Handler {
	return &Handler{Flow: f, Sessions: sessions}
}

type pageFunc func(ctx context.Context, sess *session.Session) (flow.Outcome, error)

func (h *Handler) page(fn pageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.load(w, r)
		if !ok {
			return
		}
		out, err := fn(r.Context(), sess)
		h.respond(w, r, sess, out, err)
	}
}

// submit decodes a form (or JSON) body into T before handing it to fn.
func submit[T any](h *Handler, fn func(context.Context, *session.Session, T) (flow.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := decode(w, r, &req); err != nil {
			middleware.Logger(r.Context()).Info("malformed form body", "path", r.URL.Path, "error", err)
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "malformed request body"})
			return
		}
		sess, ok := h.load(w, r)
		if !ok {
			return
		}
		out, err := fn(r.Context(), sess, req)
		h.respond(w, r, sess, out, err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxFormBytes)
	if render.GetRequestContentType(r) == render.ContentTypeJSON {
		return render.DecodeJSON(body, v)
	}
	dec := form.NewDecoder(body)
	dec.IgnoreUnknownKeys(true)
	return dec.Decode(v)
}

func (h *Handler) resend(fn func(context.Context, *session.Session) flow.ResendOutcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.load(w, r)
		if !ok {
			return
		}
		out := fn(r.Context(), sess)
		if !h.commit(w, r, sess) {
			return
		}

		status := http.StatusOK
		switch out.Status {
		case flow.ResendNoPending:
			status = http.StatusBadRequest
		case flow.ResendTooSoon:
			status = http.StatusTooManyRequests
			if out.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int((out.RetryAfter+time.Second-1)/time.Second)))
			}
		case flow.ResendFailed:
			status = http.StatusInternalServerError
		}
		render.Status(r, status)
		render.JSON(w, r, dto.ResendResponse{Success: out.Status == flow.ResendSent, Message: out.Message})
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	h.respond(w, r, sess, h.Flow.Logout(r.Context(), sess), nil)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.Sessions.Load(r)
	if err != nil {
		h.fail(w, r, "load session", err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	if err := h.Sessions.Commit(r.Context(), w, sess); err != nil {
		h.fail(w, r, "save session", err)
		return false
	}
	return true
}

// respond stores the session and writes a redirect or a rendered view. A
// redirect's notice is carried to the next render as a flash.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, sess *session.Session, out flow.Outcome, err error) {
	if err != nil {
		h.fail(w, r, "flow step", err)
		return
	}
	metrics.FlowOutcomesTotal.WithLabelValues(string(out.Step), out.Kind.String()).Inc()

	if out.Kind == flow.Redirect {
		if out.Notice != "" && !sess.Destroyed() {
			sess.State.Flash = out.Notice
		}
		if !h.commit(w, r, sess) {
			return
		}
		http.Redirect(w, r, location(out), http.StatusSeeOther)
		return
	}

	notice := sess.State.TakeFlash()
	if out.Notice != "" {
		notice = out.Notice
	}
	if !h.commit(w, r, sess) {
		return
	}
	status := http.StatusOK
	if out.HasErrors() {
		status = http.StatusUnprocessableEntity
	}
	render.Status(r, status)
	render.JSON(w, r, View{Step: out.Step, Errors: out.Errors, Notice: notice, Data: out.Data})
}

func location(out flow.Outcome) string {
	path := StepPath(out.Step)
	if len(out.Query) == 0 {
		return path
	}
	q := url.Values{}
	for k, v := range out.Query {
		q.Set(k, v)
	}
	return path + "?" + q.Encode()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	middleware.Logger(r.Context()).Error(op+" failed", "path", r.URL.Path, "error", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}
