// Package session drives one capture-to-decision interaction: it stores the
// captured image, issues the single prediction call and turns the answer
// into the text shown to the user.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/age-gate/internal/ageapi"
	"github.com/example/age-gate/internal/assurance"
	"github.com/example/age-gate/internal/capture"
	"github.com/example/age-gate/internal/logging"
)

// DefaultAgeThreshold is the minimum estimated age that grants access.
const DefaultAgeThreshold = 18

var (
	// ErrNotCapturing is returned for operations that only make sense before an image is taken.
	ErrNotCapturing = errors.New("session is reviewing a capture")
	// ErrNotFound is returned when a session does not exist or belongs to someone else.
	ErrNotFound = errors.New("session not found")
)

// Check is the record of a settled prediction handed to a Recorder.
type Check struct {
	ID               string
	SessionID        string
	Owner            string
	Secure           bool
	Level            assurance.Level
	ImageFingerprint string
	Age              *float64
	Granted          bool
	Failed           bool
	Detail           string
	Latency          time.Duration
	CreatedAt        time.Time
}

// Recorder receives every settled check that was not discarded by a reset.
type Recorder interface {
	Record(ctx context.Context, check Check) error
}

// Controller owns the transient state of one session. It is safe for
// concurrent use; the prediction runs on its own goroutine.
type Controller struct {
	id        string
	owner     string
	client    ageapi.Client
	recorder  Recorder
	threshold float64
	logger    *zap.Logger

	mu          sync.Mutex
	level       assurance.Level
	secure      bool
	reviewing   bool
	image       string
	fingerprint string
	outcome     Outcome
	generation  uint64
	cancel      context.CancelFunc
}

// NewController builds a controller in capturing mode. recorder may be nil.
func NewController(id, owner string, client ageapi.Client, recorder Recorder, threshold float64, logger *zap.Logger) *Controller {
	if threshold <= 0 {
		threshold = DefaultAgeThreshold
	}
	return &Controller{
		id:        id,
		owner:     owner,
		client:    client,
		recorder:  recorder,
		threshold: threshold,
		logger:    logging.WithSession(logger.Named("session"), id),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Owner returns the subject the session belongs to.
func (c *Controller) Owner() string { return c.owner }

// SelectLevel applies a click on a level-of-assurance option.
func (c *Controller) SelectLevel(level assurance.Level) (assurance.Level, error) {
	if _, err := assurance.Parse(string(level)); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reviewing {
		return c.level, ErrNotCapturing
	}
	c.level = assurance.Toggle(c.level, level)
	return c.level, nil
}

// SetSecure sets the flag passed to the capture widget.
func (c *Controller) SetSecure(secure bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reviewing {
		return ErrNotCapturing
	}
	c.secure = secure
	return nil
}

// Capture accepts a successful widget capture. The image is stored before
// the prediction is issued, so callers see the session reviewing with a
// pending outcome straight away. The returned channel is closed once the
// prediction has settled or been discarded. ctx only contributes values;
// the call is cancelled by Reset, not by ctx.
func (c *Controller) Capture(ctx context.Context, result capture.Result) (<-chan struct{}, error) {
	c.mu.Lock()
	reviewing := c.reviewing
	c.mu.Unlock()
	if reviewing {
		return nil, ErrNotCapturing
	}

	img, err := result.Decode()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.reviewing {
		c.mu.Unlock()
		return nil, ErrNotCapturing
	}
	c.generation++
	gen := c.generation
	c.reviewing = true
	c.image = result.Image
	c.fingerprint = img.Fingerprint()
	c.outcome = Outcome{Kind: Pending}
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	req := ageapi.PredictRequest{
		Image:            result.Image,
		Secure:           result.Secure,
		LevelOfAssurance: c.level,
	}
	fingerprint := c.fingerprint
	c.mu.Unlock()

	c.logger.Info("capture received",
		zap.Bool("secure", result.Secure),
		zap.String("level_of_assurance", string(req.LevelOfAssurance)),
		zap.String("mime_type", img.MimeType),
		zap.Int("image_bytes", len(img.Data)),
	)

	done := make(chan struct{})
	go c.predict(callCtx, gen, req, fingerprint, done)
	return done, nil
}

// ReportCaptureError logs a widget failure. It never changes state.
func (c *Controller) ReportCaptureError(detail interface{}) {
	c.logger.Warn("capture widget reported an error", zap.Any("error", detail))
}

// Reset returns to capturing mode, clearing the image and any outcome in one
// step. An in-flight prediction is cancelled and its result discarded. The
// selected level and secure flag are kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.reviewing = false
	c.image = ""
	c.fingerprint = ""
	c.outcome = Outcome{}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		ID:      c.id,
		Owner:   c.owner,
		Mode:    Capturing,
		Level:   c.level,
		Secure:  c.secure,
		Image:   c.image,
		Outcome: c.outcome,
	}
	if c.reviewing {
		snap.Mode = Reviewing
	}
	return snap
}

func (c *Controller) predict(ctx context.Context, gen uint64, req ageapi.PredictRequest, fingerprint string, done chan<- struct{}) {
	defer close(done)

	start := time.Now()
	prediction, err := c.client.Predict(ctx, req)
	latency := time.Since(start)
	outcome := Decide(prediction, err, c.threshold)
	outcome.CheckID = uuid.NewString()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Info("discarding prediction for reset capture", zap.Duration("latency", latency))
		return
	}
	c.outcome = outcome
	c.cancel = nil
	c.mu.Unlock()

	if outcome.Kind == Failure {
		c.logger.Warn("prediction failed",
			zap.Error(err),
			zap.String("failed_operation", logging.OperationOf(err)),
			zap.Duration("latency", latency),
		)
	} else {
		c.logger.Info("prediction settled", zap.Bool("granted", outcome.Granted), zap.Duration("latency", latency))
	}

	if c.recorder == nil {
		return
	}
	check := Check{
		ID:               outcome.CheckID,
		SessionID:        c.id,
		Owner:            c.owner,
		Secure:           req.Secure,
		Level:            req.LevelOfAssurance,
		ImageFingerprint: fingerprint,
		Age:              outcome.Age,
		Granted:          outcome.Granted,
		Failed:           outcome.Kind == Failure,
		Detail:           outcome.Text,
		Latency:          latency,
		CreatedAt:        time.Now().UTC(),
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), check); err != nil {
		c.logger.Error("failed to record check", zap.Error(logging.NewOperationError("session.record_check", check.ID, err)))
	}
}

// Decide maps a prediction result to the outcome shown to the user.
func Decide(prediction *ageapi.Prediction, err error, threshold float64) Outcome {
	if err != nil {
		return Outcome{Kind: Failure, Text: ageapi.Describe(err)}
	}
	years, err := prediction.Years()
	if err != nil {
		return Outcome{Kind: Failure, Text: err.Error()}
	}
	if years < threshold {
		return Outcome{Kind: Success, Text: "Access Denied", Age: &years}
	}
	return Outcome{
		Kind:    Success,
		Text:    fmt.Sprintf("Estimated Age:%s Access Granted", strconv.FormatFloat(years, 'f', -1, 64)),
		Age:     &years,
		Granted: true,
	}
}
