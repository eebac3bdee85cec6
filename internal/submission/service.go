// Package submission runs the multi-step "add album" dialogue. It is
// transport independent: the bot layer turns Telegram updates into Message
// values and sends back the Reply text.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/tunerover/core/logger"
	"github.com/m3rciful/tunerover/core/telegram/state"
	"github.com/m3rciful/tunerover/internal/catalog"
	"github.com/m3rciful/tunerover/internal/covers"
	"github.com/m3rciful/tunerover/internal/metrics"
)

const component = "service.submission"

// Accepted release years. Anything outside fits neither a four digit year
// nor the INTEGER column it is stored in.
const (
	minYear = 1
	maxYear = 9999
)

// ErrRetryable marks a storage failure after which the user stays on the same
// step and may resend the input.
var ErrRetryable = errors.New("submission: retryable failure")

// Catalog is the part of the catalog store the dialogue needs.
type Catalog interface {
	GetRole(ctx context.Context, id int64) (catalog.Role, error)
	FindAlbum(ctx context.Context, title, artist string) (catalog.Album, bool, error)
	InsertAlbum(ctx context.Context, in catalog.NewAlbum) (catalog.Album, error)
}

// Covers persists cover images under a reference. Save refuses to replace a
// stored cover with covers.ErrExists; Publish moves a staged upload to its
// final reference.
type Covers interface {
	Save(ctx context.Context, ref string, r io.Reader) error
	Publish(ctx context.Context, staged, ref string) error
	Discard(ctx context.Context, ref string) error
}

// ImageSource yields the bytes of an uploaded image on demand, so nothing is
// downloaded unless the dialogue is waiting for a cover.
type ImageSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Message is one user input.
type Message struct {
	UserID int64
	Text   string
	Image  ImageSource
}

// Outcome classifies what an input did to the dialogue.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeRetry     Outcome = "retry"
	OutcomeCommitted Outcome = "committed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeDenied    Outcome = "denied"
)

// Reply is what the user should see after an input.
type Reply struct {
	Text    string
	Outcome Outcome
	// State is the dialogue step after the input.
	State state.State
	// Album is set when the input committed a record.
	Album *catalog.Album
}

// Cancelable reports whether the reply should offer the inline cancel button.
func (r Reply) Cancelable() bool {
	return r.State != "" && r.State != state.StateIdle
}

// Options tune the dialogue.
type Options struct {
	// CollectLinks adds the Apple Music and streaming link steps after the cover.
	CollectLinks bool
}

// Service drives per-user dialogues stored in a state.Store.
type Service struct {
	sessions state.Store[Draft]
	catalog  Catalog
	covers   Covers
	opts     Options
}

// NewService wires the dialogue to its collaborators.
func NewService(sessions state.Store[Draft], cat Catalog, cov Covers, opts Options) *Service {
	return &Service{sessions: sessions, catalog: cat, covers: cov, opts: opts}
}

// Active reports whether userID is in the middle of a submission.
func (s *Service) Active(ctx context.Context, userID int64) bool {
	sess, ok, err := s.sessions.Get(ctx, userID)
	if err != nil {
		logger.Warn(ctx, component, "session.get",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok && sess.Active()
}

// Start opens a fresh dialogue for an admin. Non-admins are refused and no
// draft is created. A running dialogue is restarted.
func (s *Service) Start(ctx context.Context, userID int64) (Reply, error) {
	role, err := s.catalog.GetRole(ctx, userID)
	if err != nil {
		return s.retry(ctx, userID, state.StateIdle, "start", err)
	}
	if !role.IsAdmin() {
		metrics.SubmissionsTotal.WithLabelValues(string(OutcomeDenied)).Inc()
		logger.Info(ctx, component, "submission.start",
			slog.String("status", "ok"),
			slog.String("outcome", string(OutcomeDenied)),
			slog.Int64("user_id", userID),
			slog.String("role", string(role)),
		)
		return Reply{Text: msgDenied, Outcome: OutcomeDenied, State: state.StateIdle}, nil
	}
	if err := s.save(ctx, userID, StateAwaitingTitle, Draft{}); err != nil {
		return s.retry(ctx, userID, state.StateIdle, "start", err)
	}
	logger.Info(ctx, component, "submission.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("next_step", string(StateAwaitingTitle)),
	)
	return Reply{Text: msgAskTitle, Outcome: OutcomeAdvanced, State: StateAwaitingTitle}, nil
}

// Cancel discards the user's draft from any step.
func (s *Service) Cancel(ctx context.Context, userID int64) (Reply, error) {
	sess, ok, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return s.retry(ctx, userID, state.StateIdle, "cancel", err)
	}
	if !ok || !sess.Active() {
		return Reply{Text: msgNothingActive, Outcome: OutcomeIgnored, State: state.StateIdle}, nil
	}
	if err := s.sessions.Clear(ctx, userID); err != nil {
		return s.retry(ctx, userID, sess.State, "cancel", err)
	}
	s.dropUpload(ctx, userID, sess.Data)
	metrics.SubmissionsTotal.WithLabelValues(string(OutcomeCancelled)).Inc()
	logger.Info(ctx, component, "submission.cancel",
		slog.String("status", "ok"),
		slog.String("outcome", string(OutcomeCancelled)),
		slog.Int64("user_id", userID),
		slog.String("step", string(sess.State)),
	)
	return Reply{Text: msgCancelled, Outcome: OutcomeCancelled, State: state.StateIdle}, nil
}

// Handle feeds one input into the user's dialogue. The returned error is
// non-nil only for ErrRetryable failures; the Reply text is meant to be sent
// either way.
func (s *Service) Handle(ctx context.Context, msg Message) (Reply, error) {
	sess, ok, err := s.sessions.Get(ctx, msg.UserID)
	if err != nil {
		return s.retry(ctx, msg.UserID, state.StateIdle, "get", err)
	}
	if !ok || !sess.Active() {
		return Reply{Outcome: OutcomeIgnored, State: state.StateIdle}, nil
	}

	start := time.Now()
	d := sess.Data
	var (
		reply Reply
		herr  error
	)
	switch sess.State {
	case StateAwaitingTitle:
		reply, herr = s.text(ctx, msg, sess.State, StateAwaitingArtist, &d, func(v string) { d.Title = v }, msgAskArtist)
	case StateAwaitingArtist:
		reply, herr = s.text(ctx, msg, sess.State, StateAwaitingLabel, &d, func(v string) { d.Artist = v }, msgAskLabel)
	case StateAwaitingLabel:
		reply, herr = s.text(ctx, msg, sess.State, StateAwaitingYear, &d, func(v string) { d.Label = v }, msgAskYear)
	case StateAwaitingYear:
		reply, herr = s.year(ctx, msg, d)
	case StateAwaitingCover:
		reply, herr = s.cover(ctx, msg, d)
	case StateAwaitingItunesLink:
		reply, herr = s.itunes(ctx, msg, d)
	case StateAwaitingStreamingLink:
		reply, herr = s.streaming(ctx, msg, d)
	default:
		logger.Warn(ctx, component, "submission.step",
			slog.String("status", "fail"),
			slog.Int64("user_id", msg.UserID),
			slog.String("step", string(sess.State)),
		)
		s.clear(ctx, msg.UserID)
		return Reply{Outcome: OutcomeIgnored, State: state.StateIdle}, nil
	}

	switch reply.Outcome {
	case OutcomeInvalid:
		metrics.SubmissionStepErrorsTotal.WithLabelValues(string(sess.State), "invalid").Inc()
	case OutcomeRetry:
		metrics.SubmissionStepErrorsTotal.WithLabelValues(string(sess.State), "retryable").Inc()
	}
	logger.Debug(ctx, component, "submission.step",
		slog.String("status", logger.Status(herr)),
		slog.String("outcome", string(reply.Outcome)),
		slog.Int64("user_id", msg.UserID),
		slog.String("step", string(sess.State)),
		slog.String("next_step", string(reply.State)),
		slog.Duration("duration", logger.Took(start)),
	)
	return reply, herr
}

func (s *Service) text(ctx context.Context, msg Message, cur, next state.State, d *Draft, set func(string), prompt func(Draft) string) (Reply, error) {
	v := strings.TrimSpace(msg.Text)
	if v == "" {
		return invalid(cur, msgEmptyText), nil
	}
	set(v)
	if err := s.save(ctx, msg.UserID, next, *d); err != nil {
		return s.retry(ctx, msg.UserID, cur, "save", err)
	}
	return Reply{Text: prompt(*d), Outcome: OutcomeAdvanced, State: next}, nil
}

func (s *Service) year(ctx context.Context, msg Message, d Draft) (Reply, error) {
	year, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || year < minYear || year > maxYear {
		return invalid(StateAwaitingYear, msgBadYear), nil
	}

	_, exists, err := s.catalog.FindAlbum(ctx, d.Title, d.Artist)
	if err != nil {
		return s.retry(ctx, msg.UserID, StateAwaitingYear, "find", err)
	}
	if exists {
		return s.duplicate(ctx, msg.UserID, d)
	}

	d.Year = year
	if err := s.save(ctx, msg.UserID, StateAwaitingCover, d); err != nil {
		return s.retry(ctx, msg.UserID, StateAwaitingYear, "save", err)
	}
	return Reply{Text: msgAskCover(d), Outcome: OutcomeAdvanced, State: StateAwaitingCover}, nil
}

func (s *Service) cover(ctx context.Context, msg Message, d Draft) (Reply, error) {
	if msg.Image == nil {
		return invalid(StateAwaitingCover, msgBadCover), nil
	}

	ref := covers.Ref(d.Title, d.Artist, d.Year)
	staged := covers.StagedRef(ref, msg.UserID)
	err := s.storeCover(ctx, msg.Image, staged)
	if errors.Is(err, covers.ErrExists) {
		// this user's earlier upload: a retried step or a cancelled draft
		if derr := s.covers.Discard(ctx, staged); derr != nil {
			return s.retry(ctx, msg.UserID, StateAwaitingCover, "cover", derr)
		}
		err = s.storeCover(ctx, msg.Image, staged)
	}
	switch {
	case errors.Is(err, covers.ErrNotImage):
		return invalid(StateAwaitingCover, msgBadCover), nil
	case errors.Is(err, covers.ErrTooLarge):
		return invalid(StateAwaitingCover, msgCoverTooLarge), nil
	case err != nil:
		return s.retry(ctx, msg.UserID, StateAwaitingCover, "cover", err)
	}
	d.CoverRef = ref

	if !s.opts.CollectLinks {
		return s.commit(ctx, msg.UserID, StateAwaitingCover, d)
	}
	if err := s.save(ctx, msg.UserID, StateAwaitingItunesLink, d); err != nil {
		return s.retry(ctx, msg.UserID, StateAwaitingCover, "save", err)
	}
	return Reply{Text: msgAskItunes, Outcome: OutcomeAdvanced, State: StateAwaitingItunesLink}, nil
}

func (s *Service) storeCover(ctx context.Context, img ImageSource, ref string) error {
	rc, err := img.Open(ctx)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer rc.Close()
	return s.covers.Save(ctx, ref, rc)
}

func (s *Service) itunes(ctx context.Context, msg Message, d Draft) (Reply, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return invalid(StateAwaitingItunesLink, msgEmptyText), nil
	}
	d.ItunesLink = ParseOptionalLink(msg.Text)
	if err := s.save(ctx, msg.UserID, StateAwaitingStreamingLink, d); err != nil {
		return s.retry(ctx, msg.UserID, StateAwaitingItunesLink, "save", err)
	}
	return Reply{Text: msgAskStreaming, Outcome: OutcomeAdvanced, State: StateAwaitingStreamingLink}, nil
}

func (s *Service) streaming(ctx context.Context, msg Message, d Draft) (Reply, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return invalid(StateAwaitingStreamingLink, msgEmptyText), nil
	}
	d.StreamingLink = ParseOptionalLink(msg.Text)
	return s.commit(ctx, msg.UserID, StateAwaitingStreamingLink, d)
}

func (s *Service) commit(ctx context.Context, userID int64, cur state.State, d Draft) (Reply, error) {
	album, err := s.catalog.InsertAlbum(ctx, d.album())
	if errors.Is(err, catalog.ErrAlbumExists) {
		return s.duplicate(ctx, userID, d)
	}
	if err != nil {
		return s.retry(ctx, userID, cur, "insert", err)
	}
	// the insert made this draft the only owner of CoverRef
	if err := s.covers.Publish(ctx, covers.StagedRef(d.CoverRef, userID), d.CoverRef); err != nil {
		metrics.SubmissionStepErrorsTotal.WithLabelValues(string(cur), "publish").Inc()
		logger.Error(ctx, component, "submission.publish",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.Int64("album_id", album.ID),
			slog.String("cover_ref", d.CoverRef),
			slog.String("err", err.Error()),
		)
	}
	s.clear(ctx, userID)
	metrics.SubmissionsTotal.WithLabelValues(string(OutcomeCommitted)).Inc()
	logger.Info(ctx, component, "submission.commit",
		slog.String("status", "ok"),
		slog.String("outcome", string(OutcomeCommitted)),
		slog.Int64("user_id", userID),
		slog.Int64("album_id", album.ID),
		slog.String("title", album.Title),
		slog.String("artist", album.Artist),
		slog.Int("year", album.ReleaseYear),
	)
	return Reply{Text: msgCommitted, Outcome: OutcomeCommitted, State: state.StateIdle, Album: &album}, nil
}

func (s *Service) duplicate(ctx context.Context, userID int64, d Draft) (Reply, error) {
	s.dropUpload(ctx, userID, d)
	s.clear(ctx, userID)
	metrics.SubmissionsTotal.WithLabelValues(string(OutcomeDuplicate)).Inc()
	logger.Info(ctx, component, "submission.duplicate",
		slog.String("status", "ok"),
		slog.String("outcome", string(OutcomeDuplicate)),
		slog.Int64("user_id", userID),
		slog.String("title", d.Title),
		slog.String("artist", d.Artist),
	)
	return Reply{Text: msgDuplicate, Outcome: OutcomeDuplicate, State: state.StateIdle}, nil
}

// clear ends the dialogue. A failure is only logged; the draft then lingers
// until the session store expires it.
func (s *Service) clear(ctx context.Context, userID int64) {
	if err := s.sessions.Clear(ctx, userID); err != nil {
		logger.Warn(ctx, component, "session.clear",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

// dropUpload removes the cover staged by userID's draft, if any.
func (s *Service) dropUpload(ctx context.Context, userID int64, d Draft) {
	if d.CoverRef == "" {
		return
	}
	if err := s.covers.Discard(ctx, covers.StagedRef(d.CoverRef, userID)); err != nil {
		logger.Warn(ctx, component, "cover.discard",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("cover_ref", d.CoverRef),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) save(ctx context.Context, userID int64, st state.State, d Draft) error {
	return s.sessions.Save(ctx, userID, state.Session[Draft]{State: st, Data: d, UpdatedAt: time.Now()})
}

func (s *Service) retry(ctx context.Context, userID int64, cur state.State, op string, err error) (Reply, error) {
	logger.Error(ctx, component, "submission."+op,
		slog.String("status", "fail"),
		slog.Int64("user_id", userID),
		slog.String("step", string(cur)),
		slog.String("err", err.Error()),
	)
	return Reply{Text: msgRetry, Outcome: OutcomeRetry, State: cur},
		fmt.Errorf("%w: %s: %w", ErrRetryable, op, err)
}

func invalid(cur state.State, text string) Reply {
	return Reply{Text: text, Outcome: OutcomeInvalid, State: cur}
}
