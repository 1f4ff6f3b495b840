package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/infra/logging"
	"telegram-sticker-cloner/internal/usecase"
)

// codeCreateRequest creates one code, or Count codes as a bulk run.
type codeCreateRequest struct {
	usecase.CodeParams
	Count int `json:"count"`
}

type bulkResponse struct {
	Requested int                 `json:"requested"`
	Created   int                 `json:"created"`
	Complete  bool                `json:"complete"`
	Error     string              `json:"error,omitempty"`
	Codes     []*model.RedeemCode `json:"codes"`
	Listing   string              `json:"listing"`
}

type channelRequest struct {
	Name string `json:"name"`
}

func (s *Server) botStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.BotStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) codeStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.CodeStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.ledger.GetCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

func (s *Server) createCodes(w http.ResponseWriter, r *http.Request) {
	var req codeCreateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Count <= 1 {
		code, err := s.ledger.CreateCode(r.Context(), s.ownerID, req.CodeParams)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, code)
		return
	}

	// a run that stopped early still reports the codes it committed
	res, err := s.ledger.CreateBulk(r.Context(), s.ownerID, req.CodeParams, req.Count)
	if res == nil || len(res.Codes) == 0 {
		if err == nil {
			err = domain.ErrStoreFailure
		}
		s.fail(w, r, err)
		return
	}
	out := bulkResponse{
		Requested: res.Requested,
		Created:   len(res.Codes),
		Complete:  res.Complete(),
		Codes:     res.Codes,
		Listing:   res.Listing(),
	}
	status := http.StatusCreated
	if err != nil {
		out.Error = err.Error()
		status = http.StatusMultiStatus
		logging.With(r.Context(), s.log).Warn().Err(err).
			Int("created", out.Created).Int("requested", out.Requested).Msg("bulk generation incomplete")
	}
	writeJSON(w, status, out)
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.ListTemplates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*model.Template{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req usecase.TemplateParams
	if !decode(w, r, &req) {
		return
	}
	tpl, err := s.ledger.CreateTemplate(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.ledger.DeleteTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// instantiateTemplate accepts an optional overrides body.
func (s *Server) instantiateTemplate(w http.ResponseWriter, r *http.Request) {
	var ov *usecase.TemplateOverrides
	if r.ContentLength != 0 {
		ov = &usecase.TemplateOverrides{}
		if !decode(w, r, ov) {
			return
		}
	}
	code, err := s.ledger.Instantiate(r.Context(), s.ownerID, chi.URLParam(r, "id"), ov)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.settings.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) addChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if !decode(w, r, &req) {
		return
	}
	added, err := s.settings.AddChannel(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

func (s *Server) removeChannel(w http.ResponseWriter, r *http.Request) {
	removed, err := s.settings.RemoveChannel(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "channel not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) toggleForceJoin(w http.ResponseWriter, r *http.Request) {
	action := model.Action(strings.ToLower(chi.URLParam(r, "action")))
	enforced, err := s.settings.ToggleForceJoin(r.Context(), action)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enforced": enforced})
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		ce *domain.CollaboratorError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrCodeNotFound), errors.Is(err, domain.ErrTemplateNotFound), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusBadGateway, ce.Diagnostic())
	case errors.Is(err, domain.ErrStoreContention), errors.Is(err, domain.ErrStoreFailure):
		writeError(w, http.StatusServiceUnavailable, domain.ErrStoreFailure.Error())
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("admin request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
