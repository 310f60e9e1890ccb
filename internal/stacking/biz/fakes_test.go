package biz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"
)

func testLogger() *logger.Logger {
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "console"})
	if err != nil {
		panic(err)
	}
	return log
}

// fakeStore is a shared in-memory backing store. Value maps keep
// snapshot/restore cheap so the fake transaction manager can roll back.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[int64]models.UploadSession
	files    map[int64]models.RawFile
	jobs     map[int64]models.StackingJob
	frames   map[int64]models.StackedFrame
	seq      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[int64]models.UploadSession),
		files:    make(map[int64]models.RawFile),
		jobs:     make(map[int64]models.StackingJob),
		frames:   make(map[int64]models.StackedFrame),
	}
}

func (s *fakeStore) nextID() int64 {
	s.seq++
	return s.seq
}

type storeSnapshot struct {
	sessions map[int64]models.UploadSession
	files    map[int64]models.RawFile
	jobs     map[int64]models.StackingJob
	frames   map[int64]models.StackedFrame
	seq      int64
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *fakeStore) snapshot() storeSnapshot {
	return storeSnapshot{
		sessions: copyMap(s.sessions),
		files:    copyMap(s.files),
		jobs:     copyMap(s.jobs),
		frames:   copyMap(s.frames),
		seq:      s.seq,
	}
}

func (s *fakeStore) restore(sn storeSnapshot) {
	s.sessions = sn.sessions
	s.files = sn.files
	s.jobs = sn.jobs
	s.frames = sn.frames
	s.seq = sn.seq
}

// fakeTx serializes transactions on the store mutex and rolls the store
// back when the callback fails, mimicking the real manager's
// all-or-nothing behavior.
type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	sn := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(sn)
		return err
	}
	return nil
}

type fakeSessionRepo struct {
	store *fakeStore
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *models.UploadSession) error {
	session.ID = r.store.nextID()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	r.store.sessions[session.ID] = *session
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id int64) (*models.UploadSession, error) {
	s, ok := r.store.sessions[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrSessionNotFound)
	}
	return &s, nil
}

func (r *fakeSessionRepo) GetByToken(ctx context.Context, token string) (*models.UploadSession, error) {
	for _, s := range r.store.sessions {
		if s.Token == token {
			s := s
			return &s, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrSessionNotFound)
}

func (r *fakeSessionRepo) ApplyIngest(ctx context.Context, id int64, sizeBytes int64, object *string, ra, dec *float64) error {
	s, ok := r.store.sessions[id]
	if !ok || s.Status != types.SessionUploading {
		return apperrors.New(apperrors.ErrSessionNotUploading)
	}
	s.FileCount++
	s.TotalBytes += sizeBytes
	if s.Object == nil {
		s.Object = object
	}
	if s.RA == nil {
		s.RA = ra
	}
	if s.Dec == nil {
		s.Dec = dec
	}
	r.store.sessions[id] = s
	return nil
}

func (r *fakeSessionRepo) TransitionStatus(ctx context.Context, id int64, from, to types.SessionStatus, at time.Time) (bool, error) {
	s, ok := r.store.sessions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	if to == types.SessionComplete {
		s.FinalizedAt = &at
	}
	r.store.sessions[id] = s
	return true, nil
}

func (r *fakeSessionRepo) ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]*models.UploadSession, error) {
	var out []*models.UploadSession
	for _, s := range r.store.sessions {
		if s.Status == types.SessionUploading && s.CreatedAt.Before(cutoff) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeFileRepo struct {
	store *fakeStore

	// failMarkDeleted, when set, makes the next MarkDeleted fail,
	// simulating a connection lost partway through a transaction.
	failMarkDeleted error
}

func (r *fakeFileRepo) Create(ctx context.Context, file *models.RawFile) error {
	file.ID = r.store.nextID()
	file.CreatedAt = time.Now().UTC()
	r.store.files[file.ID] = *file
	return nil
}

func (r *fakeFileRepo) GetLive(ctx context.Context, id int64) (*models.RawFile, error) {
	f, ok := r.store.files[id]
	if !ok || f.IsDeleted {
		return nil, apperrors.New(apperrors.ErrFileNotFound)
	}
	return &f, nil
}

func (r *fakeFileRepo) GroupByChunkKey(ctx context.Context, sessionID int64) ([]types.ChunkGroup, error) {
	byKey := make(map[string]*types.ChunkGroup)
	for _, f := range r.store.files {
		if f.SessionID != sessionID || f.IsDeleted {
			continue
		}
		key := types.UnknownChunkKey
		if f.ChunkKey != nil {
			key = *f.ChunkKey
		}
		g, ok := byKey[key]
		if !ok {
			g = &types.ChunkGroup{ChunkKey: key}
			byKey[key] = g
		}
		g.FrameCount++
		if g.Object == nil {
			g.Object = f.Object
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.ChunkGroup, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out, nil
}

func (r *fakeFileRepo) ListLiveByChunk(ctx context.Context, sessionID int64, chunkKey string) ([]*models.RawFile, error) {
	var out []*models.RawFile
	for _, f := range r.store.files {
		if f.SessionID != sessionID || f.IsDeleted {
			continue
		}
		switch {
		case chunkKey == types.UnknownChunkKey && f.ChunkKey == nil:
		case f.ChunkKey != nil && *f.ChunkKey == chunkKey:
		default:
			continue
		}
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeFileRepo) ListLiveBySession(ctx context.Context, sessionID int64) ([]*models.RawFile, error) {
	var out []*models.RawFile
	for _, f := range r.store.files {
		if f.SessionID == sessionID && !f.IsDeleted {
			f := f
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeFileRepo) CountLiveBySession(ctx context.Context, sessionID int64) (int64, error) {
	var n int64
	for _, f := range r.store.files {
		if f.SessionID == sessionID && !f.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (r *fakeFileRepo) MarkDeleted(ctx context.Context, ids []int64) error {
	if err := r.failMarkDeleted; err != nil {
		r.failMarkDeleted = nil
		return err
	}
	for _, id := range ids {
		if f, ok := r.store.files[id]; ok {
			f.IsDeleted = true
			r.store.files[id] = f
		}
	}
	return nil
}

type fakeJobRepo struct {
	store *fakeStore
}

func (r *fakeJobRepo) CreateBatch(ctx context.Context, jobs []*models.StackingJob) error {
	now := time.Now().UTC()
	for _, j := range jobs {
		j.ID = r.store.nextID()
		j.CreatedAt = now
		r.store.jobs[j.ID] = *j
	}
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id int64) (*models.StackingJob, error) {
	j, ok := r.store.jobs[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrJobNotFound)
	}
	return &j, nil
}

func (r *fakeJobRepo) GetForUpdate(ctx context.Context, id int64) (*models.StackingJob, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeJobRepo) ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.StackingJob, error) {
	pick := func(eligible func(models.StackingJob) bool) *models.StackingJob {
		var best *models.StackingJob
		for _, j := range r.store.jobs {
			if !eligible(j) {
				continue
			}
			j := j
			if best == nil || j.ID < best.ID {
				best = &j
			}
		}
		return best
	}

	job := pick(func(j models.StackingJob) bool { return j.Status == types.JobPending })
	if job == nil {
		job = pick(func(j models.StackingJob) bool {
			return j.Status == types.JobRetry && j.RetryCount < types.MaxRetries
		})
	}
	if job == nil {
		return nil, nil
	}

	job.Status = types.JobProcessing
	job.WorkerID = &workerID
	job.StartedAt = &now
	r.store.jobs[job.ID] = *job
	return job, nil
}

func (r *fakeJobRepo) TransitionStatus(ctx context.Context, id int64, from, to types.JobStatus, at time.Time) (bool, error) {
	j, ok := r.store.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	if to == types.JobCompleted {
		j.CompletedAt = &at
	}
	r.store.jobs[id] = j
	return true, nil
}

func (r *fakeJobRepo) Update(ctx context.Context, job *models.StackingJob) error {
	if _, ok := r.store.jobs[job.ID]; !ok {
		return apperrors.New(apperrors.ErrJobNotFound)
	}
	r.store.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) Delete(ctx context.Context, id int64) error {
	delete(r.store.jobs, id)
	return nil
}

func (r *fakeJobRepo) ListCompletedWithLiveFiles(ctx context.Context, cutoff time.Time, limit int) ([]*models.StackingJob, error) {
	files := &fakeFileRepo{store: r.store}

	var out []*models.StackingJob
	for _, j := range r.store.jobs {
		if j.Status != types.JobCompleted || j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
			continue
		}
		live, _ := files.ListLiveByChunk(ctx, j.SessionID, j.ChunkKey)
		if len(live) == 0 {
			continue
		}
		j := j
		out = append(out, &j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeFrameRepo struct {
	store *fakeStore
}

func (r *fakeFrameRepo) Create(ctx context.Context, frame *models.StackedFrame) error {
	frame.ID = r.store.nextID()
	frame.CreatedAt = time.Now().UTC()
	r.store.frames[frame.ID] = *frame
	return nil
}

func (r *fakeFrameRepo) GetByJobID(ctx context.Context, jobID int64) (*models.StackedFrame, error) {
	for _, f := range r.store.frames {
		if f.JobID == jobID {
			f := f
			return &f, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrNotFound, "stacked frame")
}

func (r *fakeFrameRepo) ListByUser(ctx context.Context, userID int64) ([]*models.StackedFrame, error) {
	var out []*models.StackedFrame
	for _, f := range r.store.frames {
		if f.UserID == userID {
			f := f
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeFrameRepo) Delete(ctx context.Context, id int64) error {
	delete(r.store.frames, id)
	return nil
}

// fakeFrameStore stages frames in memory, keyed by generated path
type fakeFrameStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	roots   map[string]bool
	seq     int
}

func newFakeFrameStore() *fakeFrameStore {
	return &fakeFrameStore{
		objects: make(map[string][]byte),
		roots:   make(map[string]bool),
	}
}

func (s *fakeFrameStore) AllocateRoot(ctx context.Context, token string) (string, error) {
	root := "staging/" + token
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots[root] = true
	return root, nil
}

func (s *fakeFrameStore) Save(ctx context.Context, root, name string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	path := fmt.Sprintf("%s/%d_%s", root, s.seq, name)
	s.objects[path] = data
	return path, int64(len(data)), nil
}

func (s *fakeFrameStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("no such staged frame: %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeFrameStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *fakeFrameStore) RemoveRootIfEmpty(ctx context.Context, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.objects {
		if strings.HasPrefix(path, root+"/") {
			return nil
		}
	}
	delete(s.roots, root)
	return nil
}

func (s *fakeFrameStore) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *fakeFrameStore) hasRoot(root string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roots[root]
}

// fakeArchive records uploads and deletions; failPut simulates an
// unreachable remote store
type fakeArchive struct {
	mu      sync.Mutex
	objects map[string]int64
	deletes []string
	failPut bool
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string]int64)}
}

func (a *fakeArchive) MkdirAll(ctx context.Context, remotePath string) error { return nil }

func (a *fakeArchive) Put(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	if a.failPut {
		return fmt.Errorf("archive unreachable")
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[remotePath] = n
	return nil
}

func (a *fakeArchive) Delete(ctx context.Context, remotePath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, remotePath)
	a.deletes = append(a.deletes, remotePath)
	return nil
}

// fakeCache counts hits and invalidations
type fakeCache struct {
	mu          sync.Mutex
	entries     map[int64][]*types.StackInfo
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int64][]*types.StackInfo)}
}

func (c *fakeCache) GetStacks(ctx context.Context, userID int64) ([]*types.StackInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stacks, ok := c.entries[userID]
	return stacks, ok
}

func (c *fakeCache) SetStacks(ctx context.Context, userID int64, stacks []*types.StackInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = stacks
}

func (c *fakeCache) Invalidate(ctx context.Context, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidated++
}

// env bundles a fully wired in-memory fixture
type env struct {
	store    *fakeStore
	sessions *fakeSessionRepo
	files    *fakeFileRepo
	jobs     *fakeJobRepo
	frames   *fakeFrameRepo
	tx       *fakeTx
	staging  *fakeFrameStore
	archive  *fakeArchive
	cache    *fakeCache

	sessionUC  *SessionUseCase
	dispatchUC *DispatchUseCase
	jobUC      *JobUseCase
	sweeper    *Sweeper
}

func newEnv() *env {
	store := newFakeStore()
	e := &env{
		store:    store,
		sessions: &fakeSessionRepo{store: store},
		files:    &fakeFileRepo{store: store},
		jobs:     &fakeJobRepo{store: store},
		frames:   &fakeFrameRepo{store: store},
		tx:       &fakeTx{store: store},
		staging:  newFakeFrameStore(),
		archive:  newFakeArchive(),
		cache:    newFakeCache(),
	}

	log := testLogger()
	e.sessionUC = NewSessionUseCase(e.sessions, e.files, e.jobs, e.tx, e.staging, 50*1024*1024, log)
	e.dispatchUC = NewDispatchUseCase(e.jobs, e.tx, log)
	e.jobUC = NewJobUseCase(e.jobs, e.files, e.frames, e.sessions, e.tx, e.staging, e.archive, e.cache, log)
	e.sweeper = NewSweeper(e.sessions, e.files, e.jobs, e.tx, e.staging, SweepConfig{
		SessionExpiry: 24 * time.Hour,
		LeftoverGrace: time.Hour,
	}, log)
	return e
}

// fitsFrame builds a minimal valid frame with the given header cards
func fitsFrame(cards ...string) []byte {
	var buf bytes.Buffer
	write := func(card string) {
		buf.WriteString(card)
		buf.WriteString(strings.Repeat(" ", 80-len(card)))
	}

	write("SIMPLE  =                    T")
	write("BITPIX  =                   16")
	for _, c := range cards {
		write(c)
	}
	write("END")
	for buf.Len()%2880 != 0 {
		buf.WriteByte(' ')
	}
	return buf.Bytes()
}
