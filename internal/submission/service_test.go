package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tunerover/core/database"
	"github.com/m3rciful/tunerover/core/telegram/state"
	"github.com/m3rciful/tunerover/internal/catalog"
	"github.com/m3rciful/tunerover/internal/covers"
	"github.com/m3rciful/tunerover/migrations"
)

const (
	adminID   int64 = 1
	regularID int64 = 2
)

type fakeCatalog struct {
	mu        sync.Mutex
	roles     map[int64]catalog.Role
	albums    []catalog.Album
	findErr   error
	insertErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{roles: map[int64]catalog.Role{adminID: catalog.RoleAdmin, regularID: catalog.RoleRegular}}
}

func (f *fakeCatalog) GetRole(_ context.Context, id int64) (catalog.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.roles[id]; ok {
		return r, nil
	}
	return catalog.RoleRegular, nil
}

func (f *fakeCatalog) FindAlbum(_ context.Context, title, artist string) (catalog.Album, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return catalog.Album{}, false, f.findErr
	}
	for _, a := range f.albums {
		if a.Title == title && a.Artist == artist {
			return a, true, nil
		}
	}
	return catalog.Album{}, false, nil
}

func (f *fakeCatalog) InsertAlbum(_ context.Context, in catalog.NewAlbum) (catalog.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return catalog.Album{}, f.insertErr
	}
	for _, a := range f.albums {
		if a.Title == in.Title && a.Artist == in.Artist {
			return catalog.Album{}, catalog.ErrAlbumExists
		}
	}
	a := catalog.Album{
		ID:            int64(len(f.albums) + 1),
		Title:         in.Title,
		Artist:        in.Artist,
		Label:         in.Label,
		ReleaseYear:   in.ReleaseYear,
		CoverRef:      in.CoverRef,
		ItunesLink:    in.ItunesLink,
		StreamingLink: in.StreamingLink,
		CreatedAt:     time.Now(),
	}
	f.albums = append(f.albums, a)
	return a, nil
}

type fakeCovers struct {
	saved      map[string][]byte
	discarded  []string
	err        error
	publishErr error
}

func (f *fakeCovers) Save(_ context.Context, ref string, r io.Reader) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.saved[ref]; ok {
		return covers.ErrExists
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[ref] = b
	return nil
}

func (f *fakeCovers) Publish(_ context.Context, staged, ref string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	b, ok := f.saved[staged]
	if !ok {
		return fmt.Errorf("no staged cover %s", staged)
	}
	delete(f.saved, staged)
	f.saved[ref] = b
	return nil
}

func (f *fakeCovers) Discard(_ context.Context, ref string) error {
	delete(f.saved, ref)
	f.discarded = append(f.discarded, ref)
	return nil
}

// flakySessions fails the next failSaves calls to Save.
type flakySessions struct {
	state.Store[Draft]
	failSaves int
}

func (f *flakySessions) Save(ctx context.Context, userID int64, sess state.Session[Draft]) error {
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("redis: connection refused")
	}
	return f.Store.Save(ctx, userID, sess)
}

type bytesImage []byte

func (b bytesImage) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

func pngImage(t *testing.T) bytesImage {
	t.Helper()
	return pngImageSized(t, 8, 8)
}

func pngImageSized(t *testing.T, w, h int) bytesImage {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x * y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type harness struct {
	svc      *Service
	cat      *fakeCatalog
	cov      *fakeCovers
	sessions state.Store[Draft]
}

func newHarness(opts Options) *harness {
	h := &harness{cat: newFakeCatalog(), cov: &fakeCovers{}, sessions: state.NewMemoryStore[Draft](time.Hour)}
	h.svc = NewService(h.sessions, h.cat, h.cov, opts)
	return h
}

func (h *harness) send(t *testing.T, text string) Reply {
	t.Helper()
	r, err := h.svc.Handle(context.Background(), Message{UserID: adminID, Text: text})
	require.NoError(t, err)
	return r
}

func (h *harness) session(t *testing.T) (state.Session[Draft], bool) {
	t.Helper()
	s, ok, err := h.sessions.Get(context.Background(), adminID)
	require.NoError(t, err)
	return s, ok
}

// driveTo walks an admin dialogue up to the given step.
func (h *harness) driveTo(t *testing.T, target state.State) {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.Start(ctx, adminID)
	require.NoError(t, err)
	steps := []struct {
		at  state.State
		msg Message
	}{
		{StateAwaitingTitle, Message{UserID: adminID, Text: "Remain in Light"}},
		{StateAwaitingArtist, Message{UserID: adminID, Text: "Talking Heads"}},
		{StateAwaitingLabel, Message{UserID: adminID, Text: "Sire"}},
		{StateAwaitingYear, Message{UserID: adminID, Text: "1980"}},
		{StateAwaitingCover, Message{UserID: adminID, Image: pngImage(t)}},
		{StateAwaitingItunesLink, Message{UserID: adminID, Text: "https://music.apple.com/album/remain-in-light"}},
	}
	for _, s := range steps {
		if s.at == target {
			return
		}
		r, err := h.svc.Handle(ctx, s.msg)
		require.NoError(t, err)
		require.Equal(t, OutcomeAdvanced, r.Outcome, "at %s", s.at)
	}
	if target != StateAwaitingStreamingLink {
		t.Fatalf("unknown target %s", target)
	}
}

func TestStartRequiresAdmin(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	ctx := context.Background()

	r, err := h.svc.Start(ctx, regularID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, r.Outcome)
	assert.Equal(t, msgDenied, r.Text)
	assert.False(t, h.svc.Active(ctx, regularID))
	_, ok, err := h.sessions.Get(ctx, regularID)
	require.NoError(t, err)
	assert.False(t, ok, "no draft for a refused user")

	r, err = h.svc.Start(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, r.Outcome, "unknown users are regular")

	r, err = h.svc.Start(ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, r.Outcome)
	assert.Equal(t, StateAwaitingTitle, r.State)
	assert.True(t, r.Cancelable())
	assert.True(t, h.svc.Active(ctx, adminID))
}

func TestHandleWithoutDialogueIsIgnored(t *testing.T) {
	h := newHarness(Options{})
	r, err := h.svc.Handle(context.Background(), Message{UserID: adminID, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, r.Outcome)
	assert.Empty(t, r.Text)
}

func TestFullDialogueWithLinks(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingStreamingLink)

	r := h.send(t, "NONE")
	assert.Equal(t, OutcomeCommitted, r.Outcome)
	assert.Equal(t, state.StateIdle, r.State)
	require.NotNil(t, r.Album)
	assert.False(t, r.Cancelable())

	require.Len(t, h.cat.albums, 1)
	a := h.cat.albums[0]
	assert.Equal(t, "Remain in Light", a.Title)
	assert.Equal(t, "Talking Heads", a.Artist)
	assert.Equal(t, "Sire", a.Label)
	assert.Equal(t, 1980, a.ReleaseYear)
	assert.Equal(t, covers.Ref("Remain in Light", "Talking Heads", 1980), a.CoverRef)
	require.NotNil(t, a.ItunesLink)
	assert.Equal(t, "https://music.apple.com/album/remain-in-light", *a.ItunesLink)
	assert.Nil(t, a.StreamingLink)
	assert.Contains(t, h.cov.saved, a.CoverRef)
	assert.NotContains(t, h.cov.saved, covers.StagedRef(a.CoverRef, adminID))

	_, ok := h.session(t)
	assert.False(t, ok, "draft discarded after commit")
}

func TestCommitAfterCoverWhenLinksDisabled(t *testing.T) {
	h := newHarness(Options{CollectLinks: false})
	h.driveTo(t, StateAwaitingCover)

	r, err := h.svc.Handle(context.Background(), Message{UserID: adminID, Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, r.Outcome)
	require.Len(t, h.cat.albums, 1)
	assert.Nil(t, h.cat.albums[0].ItunesLink)
	assert.Nil(t, h.cat.albums[0].StreamingLink)
}

func TestTextStepsTrimAndRejectEmpty(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	_, err := h.svc.Start(context.Background(), adminID)
	require.NoError(t, err)

	r := h.send(t, "   ")
	assert.Equal(t, OutcomeInvalid, r.Outcome)
	assert.Equal(t, StateAwaitingTitle, r.State)

	r, err = h.svc.Handle(context.Background(), Message{UserID: adminID, Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, r.Outcome, "a photo is not a title")

	r = h.send(t, "  Remain in Light \n")
	assert.Equal(t, StateAwaitingArtist, r.State)
	assert.Contains(t, r.Text, "Remain in Light")
	sess, ok := h.session(t)
	require.True(t, ok)
	assert.Equal(t, "Remain in Light", sess.Data.Title)
}

func TestYearSelfLoopKeepsDraft(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingYear)
	before, ok := h.session(t)
	require.True(t, ok)

	for _, in := range []string{"nineteen eighty", "", "19.80", "1980s", "0", "-1980", "10000", "3000000000"} {
		r := h.send(t, in)
		assert.Equal(t, OutcomeInvalid, r.Outcome, in)
		assert.Equal(t, msgBadYear, r.Text)
		assert.Equal(t, StateAwaitingYear, r.State)
		after, ok := h.session(t)
		require.True(t, ok)
		assert.Equal(t, before.State, after.State)
		assert.Equal(t, before.Data, after.Data)
	}

	r := h.send(t, " 1980 ")
	assert.Equal(t, StateAwaitingCover, r.State)
}

func TestDuplicateDetectedAtYear(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.cat.albums = append(h.cat.albums, catalog.Album{ID: 7, Title: "Remain in Light", Artist: "Talking Heads"})
	h.driveTo(t, StateAwaitingYear)

	r := h.send(t, "1980")
	assert.Equal(t, OutcomeDuplicate, r.Outcome)
	assert.Equal(t, msgDuplicate, r.Text)
	assert.Equal(t, state.StateIdle, r.State)
	_, ok := h.session(t)
	assert.False(t, ok)
	assert.Empty(t, h.cov.saved)
	assert.Len(t, h.cat.albums, 1)
}

func TestInsertRaceReportsDuplicate(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingStreamingLink)
	h.cat.insertErr = catalog.ErrAlbumExists

	r := h.send(t, "-")
	assert.Equal(t, OutcomeDuplicate, r.Outcome)
	_, ok := h.session(t)
	assert.False(t, ok)
}

func TestCoverValidationAndRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingCover)

	r := h.send(t, "here is the cover")
	assert.Equal(t, OutcomeInvalid, r.Outcome)
	assert.Equal(t, StateAwaitingCover, r.State)

	h.cov.err = covers.ErrNotImage
	r, err := h.svc.Handle(ctx, Message{UserID: adminID, Image: bytesImage("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, r.Outcome)
	assert.Equal(t, msgBadCover, r.Text)

	h.cov.err = errors.New("disk full")
	r, err = h.svc.Handle(ctx, Message{UserID: adminID, Image: pngImage(t)})
	require.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, OutcomeRetry, r.Outcome)
	assert.Equal(t, StateAwaitingCover, r.State)
	sess, ok := h.session(t)
	require.True(t, ok)
	assert.Equal(t, StateAwaitingCover, sess.State)
	assert.Empty(t, sess.Data.CoverRef)

	h.cov.err = nil
	r, err = h.svc.Handle(ctx, Message{UserID: adminID, Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingItunesLink, r.State)
}

func TestOversizedCoverAsksForSmallerImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingCover)
	h.cov.err = fmt.Errorf("%w: limit is 64 bytes", covers.ErrTooLarge)

	for i := 0; i < 3; i++ {
		r, err := h.svc.Handle(ctx, Message{UserID: adminID, Image: pngImage(t)})
		require.NoError(t, err)
		assert.Equal(t, OutcomeInvalid, r.Outcome)
		assert.Equal(t, msgCoverTooLarge, r.Text)
		assert.Equal(t, StateAwaitingCover, r.State)
	}
	sess, ok := h.session(t)
	require.True(t, ok)
	assert.Equal(t, StateAwaitingCover, sess.State)
	assert.Empty(t, sess.Data.CoverRef)
}

func TestOversizedCoverWithFileStore(t *testing.T) {
	ctx := context.Background()
	fs, err := covers.NewFileStore(t.TempDir(), covers.Options{MaxBytes: 64})
	require.NoError(t, err)
	cat := newFakeCatalog()
	svc := NewService(state.NewMemoryStore[Draft](time.Minute), cat, fs, Options{})

	_, err = svc.Start(ctx, adminID)
	require.NoError(t, err)
	for _, in := range []string{"Remain in Light", "Talking Heads", "Sire", "1980"} {
		_, err = svc.Handle(ctx, Message{UserID: adminID, Text: in})
		require.NoError(t, err)
	}
	big := pngImageSized(t, 64, 64)
	require.Greater(t, len(big), 64)
	for i := 0; i < 3; i++ {
		r, err := svc.Handle(ctx, Message{UserID: adminID, Image: big})
		require.NoError(t, err, "attempt %d", i)
		assert.Equal(t, OutcomeInvalid, r.Outcome)
		assert.Equal(t, msgCoverTooLarge, r.Text)
	}
	assert.True(t, svc.Active(ctx, adminID))
	assert.Empty(t, cat.albums)
}

func TestResentCoverReplacesOwnUpload(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingCover)
	ref := covers.Ref("Remain in Light", "Talking Heads", 1980)
	staged := covers.StagedRef(ref, adminID)
	h.cov.saved = map[string][]byte{staged: []byte("from a cancelled draft")}

	r, err := h.svc.Handle(context.Background(), Message{UserID: adminID, Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, r.Outcome)
	assert.Equal(t, []string{staged}, h.cov.discarded)
	assert.Equal(t, []byte(pngImage(t)), h.cov.saved[staged])
	sess, ok := h.session(t)
	require.True(t, ok)
	assert.Equal(t, ref, sess.Data.CoverRef)
}

func TestCoverOfCommittedAlbumIsNeverReplaced(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingCover)
	ref := covers.Ref("Remain in Light", "Talking Heads", 1980)

	// another admin committed the same album while this draft waited for its cover
	h.cat.albums = append(h.cat.albums, catalog.Album{ID: 1, Title: "Remain in Light", Artist: "Talking Heads", CoverRef: ref})
	h.cov.saved = map[string][]byte{ref: []byte("committed cover")}

	r, err := h.svc.Handle(context.Background(), Message{UserID: adminID, Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, r.Outcome)
	assert.Empty(t, h.cov.discarded)

	h.send(t, "none")
	r = h.send(t, "none")
	assert.Equal(t, OutcomeDuplicate, r.Outcome)
	assert.Equal(t, state.StateIdle, r.State)
	assert.Equal(t, []string{covers.StagedRef(ref, adminID)}, h.cov.discarded)
	assert.Equal(t, map[string][]byte{ref: []byte("committed cover")}, h.cov.saved)
	assert.Len(t, h.cat.albums, 1)
	_, ok := h.session(t)
	assert.False(t, ok)
}

func TestCancelDropsOwnUpload(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingItunesLink)
	ref := covers.Ref("Remain in Light", "Talking Heads", 1980)
	require.Contains(t, h.cov.saved, covers.StagedRef(ref, adminID))

	_, err := h.svc.Cancel(context.Background(), adminID)
	require.NoError(t, err)
	assert.Equal(t, []string{covers.StagedRef(ref, adminID)}, h.cov.discarded)
	assert.Empty(t, h.cov.saved)
}

func TestPublishFailureStillCommits(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingStreamingLink)
	h.cov.publishErr = errors.New("rename: input/output error")

	r := h.send(t, "none")
	assert.Equal(t, OutcomeCommitted, r.Outcome)
	require.Len(t, h.cat.albums, 1)
	_, ok := h.session(t)
	assert.False(t, ok)
}

func TestSessionFailureAfterUploadRetriesCoverStep(t *testing.T) {
	ctx := context.Background()
	sessions := &flakySessions{Store: state.NewMemoryStore[Draft](time.Hour)}
	h := &harness{cat: newFakeCatalog(), cov: &fakeCovers{}, sessions: sessions}
	h.svc = NewService(sessions, h.cat, h.cov, Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingCover)
	ref := covers.Ref("Remain in Light", "Talking Heads", 1980)
	staged := covers.StagedRef(ref, adminID)

	sessions.failSaves = 1
	r, err := h.svc.Handle(ctx, Message{UserID: adminID, Image: pngImage(t)})
	require.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, StateAwaitingCover, r.State)
	require.Contains(t, h.cov.saved, staged)

	r, err = h.svc.Handle(ctx, Message{UserID: adminID, Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingItunesLink, r.State)
	assert.Equal(t, []string{staged}, h.cov.discarded)

	h.send(t, "none")
	r = h.send(t, "none")
	assert.Equal(t, OutcomeCommitted, r.Outcome)
	assert.Equal(t, []string{staged}, h.cov.discarded)
	assert.Contains(t, h.cov.saved, ref)
}

func TestInsertFailureWithoutLinksRetriesCoverStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.driveTo(t, StateAwaitingCover)
	ref := covers.Ref("Remain in Light", "Talking Heads", 1980)
	h.cov.saved = map[string][]byte{ref + ".other": []byte("unrelated")}

	h.cat.insertErr = errors.New("database is locked")
	r, err := h.svc.Handle(ctx, Message{UserID: adminID, Image: pngImage(t)})
	require.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, StateAwaitingCover, r.State)

	h.cat.insertErr = nil
	r, err = h.svc.Handle(ctx, Message{UserID: adminID, Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, r.Outcome)
	assert.Equal(t, []string{covers.StagedRef(ref, adminID)}, h.cov.discarded)
	assert.Contains(t, h.cov.saved, ref)
	assert.Contains(t, h.cov.saved, ref+".other")
}

func TestUnknownStepEndsDialogue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	require.NoError(t, h.sessions.Save(ctx, adminID, state.Session[Draft]{State: "awaiting_genre", UpdatedAt: time.Now()}))

	r := h.send(t, "krautrock")
	assert.Equal(t, OutcomeIgnored, r.Outcome)
	_, ok := h.session(t)
	assert.False(t, ok)
}

func TestCatalogFailureKeepsStep(t *testing.T) {
	h := newHarness(Options{CollectLinks: true})
	h.driveTo(t, StateAwaitingYear)
	h.cat.findErr = errors.New("connection reset")

	r, err := h.svc.Handle(context.Background(), Message{UserID: adminID, Text: "1980"})
	require.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, msgRetry, r.Text)
	sess, ok := h.session(t)
	require.True(t, ok)
	assert.Equal(t, StateAwaitingYear, sess.State)
	assert.Zero(t, sess.Data.Year)

	h.cat.findErr = nil
	h.driveTo(t, StateAwaitingStreamingLink)
	h.cat.insertErr = errors.New("connection reset")
	r, err = h.svc.Handle(context.Background(), Message{UserID: adminID, Text: "https://example.com/x"})
	require.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, StateAwaitingStreamingLink, r.State)
	sess, ok = h.session(t)
	require.True(t, ok)
	assert.Equal(t, StateAwaitingStreamingLink, sess.State)
	assert.Nil(t, sess.Data.StreamingLink)
}

func TestCancelFromAnyStep(t *testing.T) {
	steps := []state.State{
		StateAwaitingTitle, StateAwaitingArtist, StateAwaitingLabel, StateAwaitingYear,
		StateAwaitingCover, StateAwaitingItunesLink, StateAwaitingStreamingLink,
	}
	for _, st := range steps {
		t.Run(string(st), func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(Options{CollectLinks: true})
			h.driveTo(t, st)

			r, err := h.svc.Cancel(ctx, adminID)
			require.NoError(t, err)
			assert.Equal(t, OutcomeCancelled, r.Outcome)
			assert.Equal(t, msgCancelled, r.Text)
			assert.False(t, h.svc.Active(ctx, adminID))
			assert.Empty(t, h.cat.albums)

			// a new dialogue starts from a clean draft
			_, err = h.svc.Start(ctx, adminID)
			require.NoError(t, err)
			sess, ok := h.session(t)
			require.True(t, ok)
			assert.Equal(t, Draft{}, sess.Data)
		})
	}
}

func TestCancelWithoutDialogue(t *testing.T) {
	h := newHarness(Options{})
	r, err := h.svc.Cancel(context.Background(), adminID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, r.Outcome)
	assert.Equal(t, msgNothingActive, r.Text)
}

func TestDraftsAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{CollectLinks: true})
	h.cat.roles[3] = catalog.RoleAdmin

	_, err := h.svc.Start(ctx, adminID)
	require.NoError(t, err)
	_, err = h.svc.Start(ctx, 3)
	require.NoError(t, err)

	_, err = h.svc.Handle(ctx, Message{UserID: adminID, Text: "A"})
	require.NoError(t, err)
	_, err = h.svc.Handle(ctx, Message{UserID: 3, Text: "B"})
	require.NoError(t, err)

	a, _, err := h.sessions.Get(ctx, adminID)
	require.NoError(t, err)
	b, _, err := h.sessions.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "A", a.Data.Title)
	assert.Equal(t, "B", b.Data.Title)
}

func TestParseOptionalLink(t *testing.T) {
	for _, in := range []string{"none", "None", " NO ", "-", "нет", "НЕТ"} {
		assert.Nil(t, ParseOptionalLink(in), in)
	}
	got := ParseOptionalLink("  https://music.apple.com/x  ")
	require.NotNil(t, got)
	assert.Equal(t, "https://music.apple.com/x", *got)
	require.NotNil(t, ParseOptionalLink("nothing"))
}

// newSQLiteService runs the dialogue against a migrated sqlite catalog and an
// on-disk cover store. User 10 is the first (admin) user, 11 a regular one.
func newSQLiteService(t *testing.T) (*Service, *catalog.Store, *covers.FileStore) {
	t.Helper()
	ctx := context.Background()
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "bot.db")}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunMigrations(db, cfg, migrations.FS))

	store := catalog.NewStore(db)
	admin, err := store.RegisterOrUpdateUser(ctx, 10, "owner")
	require.NoError(t, err)
	require.Equal(t, catalog.RoleAdmin, admin.Role)
	_, err = store.RegisterOrUpdateUser(ctx, 11, "listener")
	require.NoError(t, err)

	fs, err := covers.NewFileStore(t.TempDir(), covers.Options{})
	require.NoError(t, err)
	return NewService(state.NewMemoryStore[Draft](time.Minute), store, fs, Options{CollectLinks: true}), store, fs
}

func submit(t *testing.T, svc *Service, userID int64, inputs ...Message) Reply {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Start(ctx, userID)
	require.NoError(t, err)
	var last Reply
	for _, m := range inputs {
		m.UserID = userID
		last, err = svc.Handle(ctx, m)
		require.NoError(t, err)
	}
	return last
}

func TestSubmissionAgainstSQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	svc, store, fs := newSQLiteService(t)

	r, err := svc.Start(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, r.Outcome)

	_, err = svc.Start(ctx, 10)
	require.NoError(t, err)
	inputs := []Message{
		{UserID: 10, Text: "Remain in Light"},
		{UserID: 10, Text: "Talking Heads"},
		{UserID: 10, Text: "Sire"},
		{UserID: 10, Text: "1980"},
		{UserID: 10, Image: pngImage(t)},
		{UserID: 10, Text: "https://music.apple.com/album/remain-in-light"},
		{UserID: 10, Text: "none"},
	}
	var last Reply
	for _, m := range inputs {
		last, err = svc.Handle(ctx, m)
		require.NoError(t, err)
	}
	require.Equal(t, OutcomeCommitted, last.Outcome)

	a, ok, err := store.FindAlbum(ctx, "Remain in Light", "Talking Heads")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Sire", a.Label)
	assert.Equal(t, 1980, a.ReleaseYear)
	assert.Nil(t, a.StreamingLink)
	p, err := fs.Path(a.CoverRef)
	require.NoError(t, err)
	assert.FileExists(t, p)

	// a second attempt stops at the year step
	_, err = svc.Start(ctx, 10)
	require.NoError(t, err)
	for _, m := range inputs[:3] {
		_, err = svc.Handle(ctx, m)
		require.NoError(t, err)
	}
	r, err = svc.Handle(ctx, inputs[3])
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, r.Outcome)
	n, err := store.CountAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmissionWithoutLinks(t *testing.T) {
	ctx := context.Background()
	svc, store, fs := newSQLiteService(t)

	r := submit(t, svc, 10,
		Message{Text: "Remain in Light"},
		Message{Text: "Talking Heads"},
		Message{Text: "Sire"},
		Message{Text: "1980"},
		Message{Image: pngImage(t)},
		Message{Text: "none"},
		Message{Text: "none"},
	)
	require.Equal(t, OutcomeCommitted, r.Outcome)
	require.NotNil(t, r.Album)

	n, err := store.CountAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	a, ok, err := store.FindAlbum(ctx, "Remain in Light", "Talking Heads")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.Album.ID, a.ID)
	assert.Equal(t, "Sire", a.Label)
	assert.Equal(t, 1980, a.ReleaseYear)
	assert.Nil(t, a.ItunesLink)
	assert.Nil(t, a.StreamingLink)
	assert.Equal(t, covers.Ref("Remain in Light", "Talking Heads", 1980), a.CoverRef)
	p, err := fs.Path(a.CoverRef)
	require.NoError(t, err)
	assert.FileExists(t, p)
	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, entries, 1, "the staged upload became the cover")
	assert.Equal(t, a.CoverRef, entries[0].Name())
}

func TestCaseVariantTitlesKeepTheirOwnCovers(t *testing.T) {
	ctx := context.Background()
	svc, store, fs := newSQLiteService(t)

	sizes := map[string]image.Point{"Remain in Light": image.Pt(30, 10), "Remain In Light": image.Pt(12, 40)}
	for _, title := range []string{"Remain in Light", "Remain In Light"} {
		size := sizes[title]
		r := submit(t, svc, 10,
			Message{Text: title},
			Message{Text: "Talking Heads"},
			Message{Text: "Sire"},
			Message{Text: "1980"},
			Message{Image: pngImageSized(t, size.X, size.Y)},
			Message{Text: "none"},
			Message{Text: "none"},
		)
		require.Equal(t, OutcomeCommitted, r.Outcome, title)
	}

	refs := map[string]bool{}
	for title, size := range sizes {
		a, ok, err := store.FindAlbum(ctx, title, "Talking Heads")
		require.NoError(t, err)
		require.True(t, ok, title)
		refs[a.CoverRef] = true

		p, err := fs.Path(a.CoverRef)
		require.NoError(t, err)
		f, err := os.Open(p)
		require.NoError(t, err)
		cfg, _, err := image.DecodeConfig(f)
		_ = f.Close()
		require.NoError(t, err)
		assert.Equal(t, size, image.Pt(cfg.Width, cfg.Height), title)
	}
	assert.Len(t, refs, 2)
}

func TestConcurrentDraftsKeepTheirOwnCovers(t *testing.T) {
	ctx := context.Background()
	svc, store, fs := newSQLiteService(t)
	require.NoError(t, store.SetRole(ctx, 11, catalog.RoleAdmin))

	start := func(userID int64) {
		_, err := svc.Start(ctx, userID)
		require.NoError(t, err)
		for _, in := range []string{"Remain in Light", "Talking Heads", "Sire", "1980"} {
			_, err = svc.Handle(ctx, Message{UserID: userID, Text: in})
			require.NoError(t, err)
		}
	}
	handle := func(m Message) Reply {
		r, err := svc.Handle(ctx, m)
		require.NoError(t, err)
		return r
	}

	start(10)
	r := handle(Message{UserID: 10, Image: pngImageSized(t, 30, 10)})
	require.Equal(t, StateAwaitingItunesLink, r.State)

	// a second admin works on the same album in parallel
	start(11)
	r = handle(Message{UserID: 11, Image: bytesImage("not a picture")})
	assert.Equal(t, OutcomeInvalid, r.Outcome)
	r = handle(Message{UserID: 11, Image: pngImageSized(t, 12, 40)})
	require.Equal(t, StateAwaitingItunesLink, r.State)

	handle(Message{UserID: 10, Text: "none"})
	r = handle(Message{UserID: 10, Text: "none"})
	require.Equal(t, OutcomeCommitted, r.Outcome)

	handle(Message{UserID: 11, Text: "none"})
	r = handle(Message{UserID: 11, Text: "none"})
	assert.Equal(t, OutcomeDuplicate, r.Outcome)

	a, ok, err := store.FindAlbum(ctx, "Remain in Light", "Talking Heads")
	require.NoError(t, err)
	require.True(t, ok)
	p, err := fs.Path(a.CoverRef)
	require.NoError(t, err)
	f, err := os.Open(p)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(f)
	_ = f.Close()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 10), image.Pt(cfg.Width, cfg.Height))

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, entries, 1, "the losing draft's upload is dropped")
}
