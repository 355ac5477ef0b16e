package lifecycle

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kfsoftware/agritrace/pkg/batch"
	"github.com/kfsoftware/agritrace/pkg/condition"
	"github.com/kfsoftware/agritrace/pkg/failure"
	"github.com/kfsoftware/agritrace/pkg/ledger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Store interface {
	Create(b *batch.Batch) (*batch.Batch, error)
	Get(id string) (*batch.Batch, error)
	Update(id string, mutate func(*batch.Batch) error) (*batch.Batch, error)
	Record(id string, rec *batch.InspectionRecord, mutate func(*batch.Batch) error) (*batch.Batch, error)
	List() ([]*batch.Batch, error)
	Conditions() ([]*batch.InspectionRecord, error)
}

type Submitter interface {
	Submit(ctx context.Context, call ledger.Call) (*ledger.Receipt, error)
}

type Config struct {
	Generator *Generator
	Clock     func() time.Time
}

type Option func(*Config)

func WithGenerator(g *Generator) Option {
	return func(cfg *Config) {
		cfg.Generator = g
	}
}

func WithClock(clock func() time.Time) Option {
	return func(cfg *Config) {
		cfg.Clock = clock
	}
}

// Controller owns the batch state machine. It anchors transitions on the
// ledger through the submitter and mirrors them into the store.
type Controller struct {
	store     Store
	submitter Submitter
	roles     batch.Roles
	drafts    *Generator
	now       func() time.Time
	validate  *validator.Validate
	// bulk keeps bulk submissions sequential so their nonces stay ordered.
	bulk sync.Mutex
}

func NewController(store Store, submitter Submitter, options ...Option) *Controller {
	cfg := Config{
		Clock: func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.Generator == nil {
		cfg.Generator = NewGenerator(cfg.Clock().UnixNano())
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Controller{
		store:     store,
		submitter: submitter,
		roles:     batch.DefaultRoles,
		drafts:    cfg.Generator,
		now:       cfg.Clock,
		validate:  validate,
	}
}

func (c *Controller) check(req interface{}, what string) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return failure.Validation("invalid %s: %v", what, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return failure.Validation("Missing required fields for %s: %s", what, strings.Join(fields, ", "))
}

func formatTemperature(t *float64) string {
	if t == nil {
		return ""
	}
	return strconv.FormatFloat(*t, 'f', -1, 64)
}

// GenerateDraft stores a randomized pending batch. The ledger is not touched.
func (c *Controller) GenerateDraft(ctx context.Context, createdBy string) (*batch.Batch, error) {
	draft, err := c.store.Create(c.drafts.Draft(createdBy, c.now()))
	if err != nil {
		return nil, err
	}
	log.WithField("batch", draft.ID).Infof("Draft batch generated")
	return draft, nil
}

type CreateRequest struct {
	Origin      string   `json:"origin" validate:"required"`
	Farm        string   `json:"farm" validate:"required"`
	Exporter    string   `json:"exporter" validate:"required"`
	ContentHash string   `json:"ipfsHash" validate:"required"`
	Color       string   `json:"color"`
	Temperature *float64 `json:"temperature"`
	Condition   string   `json:"condition"`
	CreatedBy   string   `json:"created_by"`
}

// Create anchors a new batch on the ledger and stores it only once the
// creation transaction is confirmed.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*batch.Batch, error) {
	err := c.check(req, "batch creation")
	if err != nil {
		return nil, err
	}
	receipt, err := c.submitter.Submit(ctx, ledger.CreateBatch(req.Origin, req.Farm, req.Exporter, req.ContentHash))
	if err != nil {
		return nil, failure.Ledger(err)
	}
	now := c.now()
	block := receipt.BlockNumber
	created, err := c.store.Create(&batch.Batch{
		Origin:      req.Origin,
		Farm:        req.Farm,
		Exporter:    req.Exporter,
		ContentHash: req.ContentHash,
		Color:       req.Color,
		Temperature: req.Temperature,
		Condition:   req.Condition,
		Status:      batch.StatusCreated,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		TxHash:      receipt.TxHash,
		BlockNumber: &block,
		History:     []*batch.InspectionRecord{},
	})
	if err != nil {
		log.WithField("tx", receipt.TxHash).Errorf("Batch confirmed on ledger but not stored: %v", err)
		return nil, err
	}
	log.WithFields(log.Fields{
		"batch": created.ID,
		"tx":    receipt.TxHash,
	}).Infof("Batch created")
	return created, nil
}

type BulkRequest struct {
	BatchIDs []string `json:"batch_ids" validate:"required,min=1"`
}

type BulkResult struct {
	BatchID     string         `json:"batch_id"`
	TxHash      string         `json:"tx_hash,omitempty"`
	BlockNumber *uint64        `json:"block_number,omitempty"`
	Error       *failure.Error `json:"error,omitempty"`
}

type BulkReport struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []BulkResult `json:"results"`
}

func (r *BulkReport) add(res BulkResult) {
	if res.Error != nil {
		r.Failed++
	} else {
		r.Succeeded++
	}
	r.Results = append(r.Results, res)
}

// CreateBatches anchors drafted batches one transaction at a time. A failing
// item is reported and left pending; the remaining items still proceed. Only
// a storage fault stops the run, returning the report gathered so far.
func (c *Controller) CreateBatches(ctx context.Context, req BulkRequest) (*BulkReport, error) {
	err := c.check(req, "bulk creation")
	if err != nil {
		return nil, err
	}
	c.bulk.Lock()
	defer c.bulk.Unlock()

	report := &BulkReport{Results: make([]BulkResult, 0, len(req.BatchIDs))}
	for _, id := range req.BatchIDs {
		res, err := c.anchorDraft(ctx, id)
		report.add(res)
		if err != nil {
			return report, err
		}
	}
	log.Infof("Bulk creation finished: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return report, nil
}

func (c *Controller) anchorDraft(ctx context.Context, id string) (BulkResult, error) {
	res := BulkResult{BatchID: id}
	draft, err := c.store.Get(id)
	if err != nil {
		res.Error = failure.From(err)
		if failure.Is(err, failure.KindStorage) {
			return res, err
		}
		return res, nil
	}
	if draft.Status != batch.StatusPending {
		res.Error = failure.Validation("Batch %s is not pending (status %q)", id, draft.Status)
		return res, nil
	}
	receipt, err := c.submitter.Submit(ctx, ledger.CreateBatch(draft.Origin, draft.Farm, draft.Exporter, draft.ContentHash))
	if err != nil {
		log.WithField("batch", id).Warnf("Batch failed: %v", err)
		res.Error = failure.Ledger(err)
		return res, nil
	}
	block := receipt.BlockNumber
	_, err = c.store.Update(id, func(b *batch.Batch) error {
		b.Status = batch.StatusOnChain
		b.TxHash = receipt.TxHash
		b.BlockNumber = &block
		b.UpdatedAt = c.now()
		return nil
	})
	if err != nil {
		res.Error = failure.From(err)
		return res, err
	}
	res.TxHash = receipt.TxHash
	res.BlockNumber = &block
	log.WithFields(log.Fields{
		"batch": id,
		"tx":    receipt.TxHash,
	}).Infof("Batch anchored")
	return res, nil
}

type InspectionRequest struct {
	BatchID     string   `json:"batch_id" validate:"required"`
	Role        string   `json:"role" validate:"required"`
	User        string   `json:"user"`
	Color       string   `json:"color"`
	Temperature *float64 `json:"temperature"`
	Remarks     string   `json:"remarks"`
}

// SubmitCondition records an inspection verdict. Approvals are anchored on
// the ledger on a best-effort basis: a fault is kept on the record and the
// local approval still takes effect.
func (c *Controller) SubmitCondition(ctx context.Context, req InspectionRequest) (*batch.InspectionRecord, error) {
	err := c.check(req, "condition submission")
	if err != nil {
		return nil, err
	}
	role, ok := c.roles.Lookup(req.Role)
	if !ok || !role.CanInspect {
		return nil, failure.Validation("Role %q cannot submit conditions", req.Role)
	}
	target, err := c.store.Get(req.BatchID)
	if err != nil {
		return nil, err
	}

	res := condition.Evaluate(condition.Input{
		Color:       req.Color,
		Temperature: req.Temperature,
		Remarks:     req.Remarks,
	})
	rec := &batch.InspectionRecord{
		BatchID:     target.ID,
		Role:        role.ID,
		User:        req.User,
		Color:       req.Color,
		Temperature: req.Temperature,
		Remarks:     req.Remarks,
		Verdict:     batch.VerdictRejected,
		Reasons:     res.Reasons,
		Timestamp:   c.now(),
	}
	if res.Approved {
		rec.Verdict = batch.VerdictApproved
	}
	status := batch.StatusRejected
	var block *uint64
	if rec.Approved() {
		status = role.ApprovedStatus()
		call := ledger.UpdateBatch(batch.SortKey(target.ID), status, target.ContentHash, req.Color, formatTemperature(req.Temperature))
		receipt, err := c.submitter.Submit(ctx, call)
		if err != nil {
			rec.OnchainError = err.Error()
			log.WithField("batch", target.ID).Warnf("Approval kept locally, ledger anchoring failed: %v", err)
		} else {
			rec.TxHash = receipt.TxHash
			n := receipt.BlockNumber
			block = &n
		}
	}

	_, err = c.store.Record(target.ID, rec, func(b *batch.Batch) error {
		b.Status = status
		b.UpdatedAt = rec.Timestamp
		if rec.TxHash != "" {
			b.TxHash = rec.TxHash
			b.BlockNumber = block
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"batch":   target.ID,
		"role":    role.ID,
		"verdict": rec.Verdict,
	}).Infof("Condition recorded")
	return rec, nil
}

type UpdateRequest struct {
	BatchID     string   `json:"id" validate:"required"`
	Status      string   `json:"status" validate:"required"`
	ContentHash string   `json:"ipfsHash"`
	Color       string   `json:"color"`
	Temperature *float64 `json:"temperature"`
}

// UpdateStatus overwrites the batch status and observations. Unlike condition
// approvals, the ledger transaction is mandatory: a fault aborts the call and
// leaves the store untouched.
func (c *Controller) UpdateStatus(ctx context.Context, req UpdateRequest) (*batch.Batch, error) {
	err := c.check(req, "status update")
	if err != nil {
		return nil, err
	}
	target, err := c.store.Get(req.BatchID)
	if err != nil {
		return nil, err
	}
	call := ledger.UpdateBatch(batch.SortKey(target.ID), req.Status, req.ContentHash, req.Color, formatTemperature(req.Temperature))
	receipt, err := c.submitter.Submit(ctx, call)
	if err != nil {
		return nil, failure.Ledger(err)
	}
	block := receipt.BlockNumber
	updated, err := c.store.Update(target.ID, func(b *batch.Batch) error {
		b.Status = req.Status
		b.ContentHash = req.ContentHash
		b.Color = req.Color
		b.Temperature = req.Temperature
		b.TxHash = receipt.TxHash
		b.BlockNumber = &block
		b.UpdatedAt = c.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"batch":  updated.ID,
		"status": updated.Status,
		"tx":     receipt.TxHash,
	}).Infof("Batch status updated")
	return updated, nil
}

func (c *Controller) Get(ctx context.Context, id string) (*batch.Batch, error) {
	return c.store.Get(id)
}

type Listing struct {
	Batches    []*batch.Batch            `json:"batches"`
	Conditions []*batch.InspectionRecord `json:"conditions"`
}

func (c *Controller) List(ctx context.Context) (*Listing, error) {
	batches, err := c.store.List()
	if err != nil {
		return nil, err
	}
	records, err := c.store.Conditions()
	if err != nil {
		return nil, err
	}
	return &Listing{Batches: batches, Conditions: records}, nil
}
