package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/domain/providers"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
	"github.com/attunehealth/theraplan/backend/pkg/retry"
)

func fastRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

const validTherapistPlanJSON = `{
	"presenting_concerns": ["anxiety at work"],
	"clinical_impressions": "Client presents with generalized anxiety.",
	"short_term_goals": ["practice grounding twice daily"],
	"long_term_goals": ["reduce avoidance behaviors"],
	"interventions_used": ["cognitive restructuring"],
	"homework": ["thought record"],
	"strengths": ["strong support network"],
	"risks": []
}`

const validClientPlanJSON = `{
	"your_progress": "You spoke openly about what has been weighing on you.",
	"goals_we_are_working_on": ["feeling calmer at work"],
	"things_to_try": ["a short breathing exercise each morning"],
	"your_strengths": ["the people who support you"]
}`

const validTherapistSummaryJSON = `{
	"session_overview": "Session focused on workplace anxiety.",
	"key_topics": ["work stress"],
	"interventions": ["cognitive restructuring"],
	"client_response": "Engaged and receptive.",
	"plan_for_next_session": "Review thought records."
}`

const validClientSummaryJSON = `{
	"what_we_talked_about": "We talked about what work has felt like lately.",
	"what_you_worked_on": ["noticing anxious thoughts"],
	"your_wins": ["you named a hard feeling out loud"],
	"gentle_reminders": ["progress is not a straight line"]
}`

// completionCall records one request handed to the fake completion
// provider.
type completionCall struct {
	req providers.CompletionRequest
}

// fakeCompletion routes each completion call by a substring of the
// system prompt, so sequential and concurrent callers get the right
// scripted response. A fixed response list takes priority when set.
type fakeCompletion struct {
	mu        sync.Mutex
	calls     []completionCall
	responses []completionResponse
	byPrompt  map[string]string
	err       error
}

type completionResponse struct {
	content string
	err     error
}

func (f *fakeCompletion) Complete(_ context.Context, req providers.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, completionCall{req: req})

	if len(f.responses) > 0 {
		resp := f.responses[0]
		f.responses = f.responses[1:]
		return resp.content, resp.err
	}
	if f.err != nil {
		return "", f.err
	}
	for marker, content := range f.byPrompt {
		if strings.Contains(req.SystemPrompt, marker) {
			return content, nil
		}
	}
	return "", apperrors.NewMalformedResponseError("no scripted response", nil)
}

func (f *fakeCompletion) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompletion) recordedCalls() []completionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]completionCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// allArtifactsCompletion scripts every artifact the pipeline generates.
func allArtifactsCompletion() *fakeCompletion {
	return &fakeCompletion{byPrompt: map[string]string{
		"for licensed therapists":           validTherapistPlanJSON,
		"rewriting a clinical treatment":    validClientPlanJSON,
		"therapist's records":               validTherapistSummaryJSON,
		"for the client to read afterwards": validClientSummaryJSON,
	}}
}

type fakeModeration struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	result *entities.ModerationResult
	err    error
}

func (f *fakeModeration) Moderate(_ context.Context, text string) (*entities.ModerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &entities.ModerationResult{
		Categories: map[entities.ModerationCategory]bool{},
		Scores:     map[entities.ModerationCategory]float64{},
	}, nil
}

func (f *fakeModeration) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranscription struct {
	result *entities.TranscriptionResult
	err    error
}

func (f *fakeTranscription) Transcribe(_ context.Context, _ []byte, _ string) (*entities.TranscriptionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSessionRepo struct {
	mu          sync.Mutex
	sessions    map[string]*entities.Session
	riskUpdates map[string]entities.RiskLevel
	transcripts map[string]entities.Transcript
}

func newFakeSessionRepo(sessions ...*entities.Session) *fakeSessionRepo {
	repo := &fakeSessionRepo{
		sessions:    make(map[string]*entities.Session),
		riskUpdates: make(map[string]entities.RiskLevel),
		transcripts: make(map[string]entities.Transcript),
	}
	for _, s := range sessions {
		repo.sessions[s.ID] = s
	}
	return repo
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("session not found")
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) UpdateTranscript(_ context.Context, id string, transcript entities.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperrors.NewNotFoundError("session not found")
	}
	session.Transcript = transcript
	r.transcripts[id] = transcript
	return nil
}

func (r *fakeSessionRepo) UpdateRiskLevel(_ context.Context, id string, level entities.RiskLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperrors.NewNotFoundError("session not found")
	}
	session.RiskLevel = level
	r.riskUpdates[id] = level
	return nil
}

func (r *fakeSessionRepo) riskLevelFor(id string) (entities.RiskLevel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	level, ok := r.riskUpdates[id]
	return level, ok
}

// fakeVersionRepo is an in-memory PlanVersionRepository honoring the
// numbering and single-active-version rules, with per-call mutual
// exclusion so concurrent revisions exercise the one-winner contract.
type fakeVersionRepo struct {
	mu       sync.Mutex
	versions []*entities.PlanVersion
	now      time.Time
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{now: time.Now().UTC()}
}

func (r *fakeVersionRepo) tick() time.Time {
	r.now = r.now.Add(time.Second)
	return r.now
}

func (r *fakeVersionRepo) CreateVersion(_ context.Context, sessionID, clientID, therapistID string, artifacts entities.PlanArtifacts) (*entities.PlanVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := 1
	for _, v := range r.versions {
		if v.SessionID == sessionID {
			if v.VersionNumber >= next {
				next = v.VersionNumber + 1
			}
			v.IsActive = false
		}
	}

	version := &entities.PlanVersion{
		ID:                   uuid.New().String(),
		SessionID:            sessionID,
		ClientID:             clientID,
		TherapistID:          therapistID,
		VersionNumber:        next,
		TherapistPlanText:    artifacts.TherapistPlanText,
		ClientPlanText:       artifacts.ClientPlanText,
		TherapistSummaryText: artifacts.TherapistSummaryText,
		ClientSummaryText:    artifacts.ClientSummaryText,
		IsActive:             true,
		CreatedAt:            r.tick(),
	}
	r.versions = append(r.versions, version)
	return version, nil
}

func (r *fakeVersionRepo) ReviseVersion(_ context.Context, versionID, therapistPlanText, clientPlanText string, expectedNotOlderThan time.Time) (*entities.PlanVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var referenced *entities.PlanVersion
	for _, v := range r.versions {
		if v.ID == versionID {
			referenced = v
			break
		}
	}
	if referenced == nil {
		return nil, apperrors.NewNotFoundError("plan version not found")
	}

	var latest time.Time
	for _, v := range r.versions {
		if v.SessionID == referenced.SessionID && v.CreatedAt.After(latest) {
			latest = v.CreatedAt
		}
	}
	if expectedNotOlderThan.Before(latest) {
		return nil, apperrors.NewConflictError("a newer plan version exists, please refresh and retry")
	}

	for _, v := range r.versions {
		if v.SessionID == referenced.SessionID {
			v.IsActive = false
		}
	}

	version := &entities.PlanVersion{
		ID:                   uuid.New().String(),
		SessionID:            referenced.SessionID,
		ClientID:             referenced.ClientID,
		TherapistID:          referenced.TherapistID,
		VersionNumber:        referenced.VersionNumber + 1,
		TherapistPlanText:    therapistPlanText,
		ClientPlanText:       clientPlanText,
		TherapistSummaryText: referenced.TherapistSummaryText,
		ClientSummaryText:    referenced.ClientSummaryText,
		IsActive:             true,
		CreatedAt:            r.tick(),
	}
	r.versions = append(r.versions, version)
	return version, nil
}

func (r *fakeVersionRepo) GetByID(_ context.Context, id string) (*entities.PlanVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions {
		if v.ID == id {
			copied := *v
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFoundError("plan version not found")
}

func (r *fakeVersionRepo) GetActiveVersion(_ context.Context, sessionID string) (*entities.PlanVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions {
		if v.SessionID == sessionID && v.IsActive {
			copied := *v
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFoundError("no active plan version")
}

func (r *fakeVersionRepo) ListBySession(_ context.Context, sessionID string) ([]*entities.PlanVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.PlanVersion, 0)
	for i := len(r.versions) - 1; i >= 0; i-- {
		if r.versions[i].SessionID == sessionID {
			copied := *r.versions[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeVersionRepo) activeCount(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, v := range r.versions {
		if v.SessionID == sessionID && v.IsActive {
			count++
		}
	}
	return count
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("key not found")
	}
	return value, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok, nil
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []*entities.PlanEvent
}

func (b *fakeEventBus) Publish(_ context.Context, _ string, event *entities.PlanEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeEventBus) Subscribe(_ context.Context, _ string) (<-chan *entities.PlanEvent, error) {
	ch := make(chan *entities.PlanEvent)
	close(ch)
	return ch, nil
}

func (b *fakeEventBus) Unsubscribe(_ context.Context, _ string) error { return nil }

func (b *fakeEventBus) Close() error { return nil }

func (b *fakeEventBus) published() []*entities.PlanEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*entities.PlanEvent, len(b.events))
	copy(out, b.events)
	return out
}

func diarizedTranscript() entities.Transcript {
	return entities.Transcript{
		Diarized: &entities.DiarizedTranscript{
			Segments: []entities.TranscriptSegment{
				{Speaker: entities.SpeakerTherapist, Text: "How has your week been?", StartSeconds: 0, EndSeconds: 3},
				{Speaker: entities.SpeakerClient, Text: "Stressful, mostly because of work.", StartSeconds: 3, EndSeconds: 8},
			},
			FullText: "How has your week been? Stressful, mostly because of work.",
		},
	}
}
