package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/infra/logging"
	"telegram-sticker-cloner/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

const (
	day                = 24 * time.Hour
	defaultCategory    = "General"
	maxCodeAttempts    = 10
	defaultBulkMaximum = 100
)

// DocumentStore is the critical section around the ledger document.
// store.Store implements it.
type DocumentStore interface {
	Update(ctx context.Context, op string, fn func(doc *model.Document) error) error
	View(ctx context.Context, fn func(doc *model.Document) error) error
}

// LedgerUseCase creates, stores and consumes redeem codes and templates.
type LedgerUseCase interface {
	CreateCode(ctx context.Context, actorID int64, p CodeParams) (*model.RedeemCode, error)
	CreateBulk(ctx context.Context, actorID int64, p CodeParams, count int) (*BulkResult, error)
	Redeem(ctx context.Context, code string, userID int64, displayName string) (*Redemption, error)
	GetCode(ctx context.Context, code string) (*model.RedeemCode, error)

	CreateTemplate(ctx context.Context, p TemplateParams) (*model.Template, error)
	DeleteTemplate(ctx context.Context, id string) (*model.Template, error)
	ListTemplates(ctx context.Context) ([]*model.Template, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	Instantiate(ctx context.Context, actorID int64, id string, ov *TemplateOverrides) (*model.RedeemCode, error)

	IsPremium(ctx context.Context, userID int64) (bool, error)
	ClaimCount(ctx context.Context, userID int64) (int, error)
}

// CodeParams describe one code to generate. A nil ActivateInDays activates
// the code immediately.
type CodeParams struct {
	Name           string           `json:"name"`
	Category       string           `json:"category"`
	Days           int              `json:"days"`
	Limit          model.UsageLimit `json:"limit"`
	ExpiresInDays  int              `json:"expires_in_days"`
	ActivateInDays *int             `json:"activate_in_days,omitempty"`
}

type TemplateParams struct {
	Name           string           `json:"name"`
	Category       string           `json:"category"`
	Days           int              `json:"days"`
	Limit          model.UsageLimit `json:"limit"`
	ExpiresInDays  int              `json:"expires_in_days"`
	ActivateInDays *int             `json:"activate_in_days,omitempty"`
}

// TemplateOverrides replace template fields for a single instantiation.
// Zero values keep the template's own.
type TemplateOverrides struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

// Redemption is the outcome of a successful claim.
type Redemption struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Days       int       `json:"days"`
	ExpiresAt  time.Time `json:"expires_at"`
	Remaining  int       `json:"remaining"`
	Unlimited  bool      `json:"unlimited"`
	FirstClaim bool      `json:"first_claim"`
}

// BulkResult lists the codes a bulk run managed to create. Err is set when
// the run stopped early.
type BulkResult struct {
	Codes     []*model.RedeemCode
	Requested int
	Params    CodeParams
	CreatedAt time.Time
	Err       error
}

func (r *BulkResult) Complete() bool { return r.Err == nil && len(r.Codes) == r.Requested }

// Listing renders the downloadable text file for a bulk run.
func (r *BulkResult) Listing() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generated %d codes on %s\n", len(r.Codes), r.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Base Name: %s\n", r.Params.Name)
	fmt.Fprintf(&b, "Days: %d\n", r.Params.Days)
	fmt.Fprintf(&b, "Expires in: %d days\n\n", r.Params.ExpiresInDays)
	for _, c := range r.Codes {
		fmt.Fprintf(&b, "%s: %s (Expires: %s)\n", c.Name, c.Code, c.ExpiresAt.Format(model.DayLayout))
	}
	return b.String()
}

// LedgerOption tunes a ledger use case, mostly for tests.
type LedgerOption func(*ledgerUC)

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(uc *ledgerUC) { uc.now = now }
}

func WithCodeGenerator(gen func() (string, error)) LedgerOption {
	return func(uc *ledgerUC) { uc.newCode = gen }
}

func WithBulkMax(n int) LedgerOption {
	return func(uc *ledgerUC) {
		if n > 0 {
			uc.bulkMax = n
		}
	}
}

type ledgerUC struct {
	store   DocumentStore
	ownerID int64
	bulkMax int
	newCode func() (string, error)
	now     func() time.Time
	log     *zerolog.Logger
}

func NewLedgerUseCase(store DocumentStore, ownerID int64, logger *zerolog.Logger, opts ...LedgerOption) *ledgerUC {
	uc := &ledgerUC{
		store:   store,
		ownerID: ownerID,
		bulkMax: defaultBulkMaximum,
		newCode: generateRedeemCode,
		now:     time.Now,
		log:     logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ledgerUC) CreateCode(ctx context.Context, actorID int64, p CodeParams) (*model.RedeemCode, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.CreateCode")()

	var created *model.RedeemCode
	err := uc.store.Update(ctx, "create_code", func(doc *model.Document) error {
		rc, err := uc.createCodeLocked(doc, actorID, p, uc.now())
		if err != nil {
			return err
		}
		created = rc.Copy()
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncCodesGenerated(codeKind(created.Limit), 1)
	uc.log.Info().
		Int64("actor_id", actorID).
		Str("code", created.Code).
		Int("days", created.Days).
		Str("limit", created.Limit.String()).
		Msg("redeem code created")
	return created, nil
}

// CreateBulk creates count single-use codes named "{name} #{i}". Every code
// is committed on its own; a store failure stops the run and the result
// lists what was created before it.
func (uc *ledgerUC) CreateBulk(ctx context.Context, actorID int64, p CodeParams, count int) (*BulkResult, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.CreateBulk")()

	if count < 1 || count > uc.bulkMax {
		return nil, &domain.ValidationError{Field: "count", Reason: fmt.Sprintf("must be between 1 and %d", uc.bulkMax)}
	}
	p.Category = model.CategoryBulk
	p.Limit = model.Capped(1)
	if err := validateCodeParams(p); err != nil {
		return nil, err
	}

	res := &BulkResult{Requested: count, Params: p, CreatedAt: uc.now()}
	for i := 1; i <= count; i++ {
		item := p
		item.Name = fmt.Sprintf("%s #%d", p.Name, i)

		var created *model.RedeemCode
		err := uc.store.Update(ctx, "create_bulk_code", func(doc *model.Document) error {
			rc, err := uc.createCodeLocked(doc, actorID, item, uc.now())
			if err != nil {
				return err
			}
			created = rc.Copy()
			return nil
		})
		if err != nil {
			res.Err = err
			uc.log.Error().Err(err).Int("created", len(res.Codes)).Int("requested", count).Msg("bulk generation stopped")
			break
		}
		res.Codes = append(res.Codes, created)
	}
	metrics.IncCodesGenerated("bulk", len(res.Codes))
	uc.log.Info().Int64("actor_id", actorID).Int("created", len(res.Codes)).Str("base_name", p.Name).Msg("bulk codes created")
	return res, res.Err
}

// Redeem claims code for userID and extends the user's premium entitlement.
func (uc *ledgerUC) Redeem(ctx context.Context, code string, userID int64, displayName string) (*Redemption, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.Redeem")()

	key := NormalizeCode(code)
	var result *Redemption
	err := uc.store.Update(ctx, "redeem", func(doc *model.Document) error {
		now := uc.now()
		rc, ok := doc.RedeemCodes[key]
		if !ok {
			return &domain.EntitlementError{Err: domain.ErrCodeNotFound, Code: key}
		}
		if err := rc.CheckClaim(userID, now); err != nil {
			return err
		}
		user, _, err := doc.EnsureUser(userID, displayName, now)
		if err != nil {
			return err
		}
		if userID != uc.ownerID && user.ClaimedCount() >= doc.Settings.MaxCodesPerUser {
			return &domain.EntitlementError{
				Err:     domain.ErrUserQuotaExceeded,
				Code:    key,
				Max:     doc.Settings.MaxCodesPerUser,
				Claimed: user.ClaimedCount(),
			}
		}

		rc.AddClaim(userID, now)
		expires := user.ExtendPremium(rc.Days, now)
		user.CodeHistory = append(user.CodeHistory, model.CodeHistoryEntry{
			Code:      rc.Code,
			Name:      rc.Name,
			Category:  rc.Category,
			Days:      rc.Days,
			ClaimedAt: now,
		})
		user.Touch(now)
		first := user.ClaimedCount() == 1
		doc.Stats.RecordClaimed(first, now)

		left, capped := rc.Limit.Remaining(rc.Used)
		result = &Redemption{
			Code:       rc.Code,
			Name:       rc.Name,
			Days:       rc.Days,
			ExpiresAt:  expires,
			Remaining:  left,
			Unlimited:  !capped,
			FirstClaim: first,
		}
		return nil
	})
	metrics.IncRedemption(redemptionResult(err))
	if err != nil {
		uc.log.Debug().Err(err).Int64("user_id", userID).Str("code", key).Msg("redemption refused")
		return nil, err
	}
	uc.log.Info().Int64("user_id", userID).Str("code", key).Time("premium_expires", result.ExpiresAt).Msg("code redeemed")
	return result, nil
}

func (uc *ledgerUC) GetCode(ctx context.Context, code string) (*model.RedeemCode, error) {
	key := NormalizeCode(code)
	var found *model.RedeemCode
	err := uc.store.View(ctx, func(doc *model.Document) error {
		rc, ok := doc.RedeemCodes[key]
		if !ok {
			return &domain.EntitlementError{Err: domain.ErrCodeNotFound, Code: key}
		}
		found = rc.Copy()
		return nil
	})
	return found, err
}

func (uc *ledgerUC) CreateTemplate(ctx context.Context, p TemplateParams) (*model.Template, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.CreateTemplate")()

	if p.Category == "" {
		p.Category = model.CategoryTemplate
	}
	if err := validateCodeParams(CodeParams(p)); err != nil {
		return nil, err
	}
	t := &model.Template{
		ID:             newTemplateID(),
		Name:           strings.TrimSpace(p.Name),
		Days:           p.Days,
		Limit:          p.Limit,
		Category:       p.Category,
		ExpiresInDays:  p.ExpiresInDays,
		ActivateInDays: p.ActivateInDays,
	}
	err := uc.store.Update(ctx, "create_template", func(doc *model.Document) error {
		if _, exists := doc.Templates[t.ID]; exists {
			return fmt.Errorf("template %s: %w", t.ID, domain.ErrAlreadyExists)
		}
		cp := t.Copy()
		cp.CreatedAt = uc.now()
		doc.Templates[cp.ID] = cp
		t = cp.Copy()
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncTemplate("created")
	uc.log.Info().Str("template_id", t.ID).Str("name", t.Name).Msg("template created")
	return t, nil
}

func (uc *ledgerUC) DeleteTemplate(ctx context.Context, id string) (*model.Template, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.DeleteTemplate")()

	var removed *model.Template
	err := uc.store.Update(ctx, "delete_template", func(doc *model.Document) error {
		t, ok := doc.Templates[id]
		if !ok {
			return domain.ErrTemplateNotFound
		}
		delete(doc.Templates, id)
		removed = t.Copy()
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncTemplate("deleted")
	uc.log.Info().Str("template_id", id).Msg("template deleted")
	return removed, nil
}

// ListTemplates returns templates oldest first.
func (uc *ledgerUC) ListTemplates(ctx context.Context) ([]*model.Template, error) {
	var out []*model.Template
	err := uc.store.View(ctx, func(doc *model.Document) error {
		out = make([]*model.Template, 0, len(doc.Templates))
		for _, t := range doc.Templates {
			out = append(out, t.Copy())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *model.Template) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (uc *ledgerUC) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	var found *model.Template
	err := uc.store.View(ctx, func(doc *model.Document) error {
		t, ok := doc.Templates[id]
		if !ok {
			return domain.ErrTemplateNotFound
		}
		found = t.Copy()
		return nil
	})
	return found, err
}

// Instantiate stamps a code from a template inside one critical section.
func (uc *ledgerUC) Instantiate(ctx context.Context, actorID int64, id string, ov *TemplateOverrides) (*model.RedeemCode, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.Instantiate")()

	var created *model.RedeemCode
	err := uc.store.Update(ctx, "instantiate_template", func(doc *model.Document) error {
		t, ok := doc.Templates[id]
		if !ok {
			return domain.ErrTemplateNotFound
		}
		p := CodeParams{
			Name:           t.Name,
			Category:       t.Category,
			Days:           t.Days,
			Limit:          t.Limit,
			ExpiresInDays:  t.ExpiresInDays,
			ActivateInDays: t.ActivateInDays,
		}
		if ov != nil {
			if name := strings.TrimSpace(ov.Name); name != "" {
				p.Name = name
			}
			if ov.ExpiresInDays > 0 {
				p.ExpiresInDays = ov.ExpiresInDays
			}
		}
		rc, err := uc.createCodeLocked(doc, actorID, p, uc.now())
		if err != nil {
			return err
		}
		created = rc.Copy()
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncCodesGenerated("template", 1)
	metrics.IncTemplate("instantiated")
	uc.log.Info().Str("template_id", id).Str("code", created.Code).Msg("code created from template")
	return created, nil
}

func (uc *ledgerUC) IsPremium(ctx context.Context, userID int64) (bool, error) {
	var premium bool
	err := uc.store.View(ctx, func(doc *model.Document) error {
		premium = doc.Users[userID].IsPremium(uc.now())
		return nil
	})
	return premium, err
}

func (uc *ledgerUC) ClaimCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := uc.store.View(ctx, func(doc *model.Document) error {
		if u, ok := doc.Users[userID]; ok {
			n = u.ClaimedCount()
		}
		return nil
	})
	return n, err
}

// createCodeLocked validates p and inserts a new code into doc. It must run
// inside a store update.
func (uc *ledgerUC) createCodeLocked(doc *model.Document, actorID int64, p CodeParams, now time.Time) (*model.RedeemCode, error) {
	if err := validateCodeParams(p); err != nil {
		return nil, err
	}
	days := p.Days
	if actorID != uc.ownerID && days > doc.Settings.MaxDaysPerCode {
		days = doc.Settings.MaxDaysPerCode
	}

	activateAt := now
	if p.ActivateInDays != nil {
		activateAt = now.Add(time.Duration(*p.ActivateInDays) * day)
	}
	expiresAt := now.Add(time.Duration(p.ExpiresInDays) * day)
	if !activateAt.Before(expiresAt) {
		return nil, &domain.ValidationError{Field: "activate_in_days", Reason: "activation must come before expiry"}
	}

	code, err := uc.uniqueCode(doc)
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(p.Category)
	if category == "" {
		category = defaultCategory
	}

	rc := &model.RedeemCode{
		Code:       code,
		Name:       strings.TrimSpace(p.Name),
		Category:   category,
		Days:       days,
		Limit:      p.Limit,
		Active:     p.ActivateInDays == nil,
		CreatedAt:  now,
		ActivateAt: activateAt,
		ExpiresAt:  expiresAt,
		Claims:     []model.Claim{},
	}
	doc.RedeemCodes[code] = rc
	doc.Stats.RecordGenerated(days, now)
	return rc, nil
}

func (uc *ledgerUC) uniqueCode(doc *model.Document) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := uc.newCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		if _, taken := doc.RedeemCodes[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate code after %d attempts: %w", maxCodeAttempts, domain.ErrAlreadyExists)
}

func validateCodeParams(p CodeParams) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	case p.Days <= 0:
		return &domain.ValidationError{Field: "days", Reason: "must be a positive number"}
	case p.ExpiresInDays <= 0:
		return &domain.ValidationError{Field: "expires_in_days", Reason: "must be a positive number"}
	case !p.Limit.Valid():
		return &domain.ValidationError{Field: "limit", Reason: "must be at least 1 or unlimited"}
	case p.ActivateInDays != nil && *p.ActivateInDays < 0:
		return &domain.ValidationError{Field: "activate_in_days", Reason: "must not be negative"}
	}
	return nil
}

func codeKind(l model.UsageLimit) string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	if n, _ := l.Max(); n == 1 {
		return "single"
	}
	return "multi"
}

func redemptionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCodeNotYetActive):
		return "not_active"
	case errors.Is(err, domain.ErrCodeExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrUserQuotaExceeded):
		return "user_quota"
	}
	return "error"
}
