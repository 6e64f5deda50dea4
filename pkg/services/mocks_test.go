package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/repositories"
)

// mockProjectRepo is an in-memory ProjectRepository keyed by handle.
type mockProjectRepo struct {
	repositories.ProjectRepository
	projects  map[string]*models.Project
	created   []*models.Project
	createErr error
	getErr    error
	listErr   error
}

func newMockProjectRepo(projects ...*models.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: make(map[string]*models.Project)}
	for _, p := range projects {
		m.projects[p.Handle] = p
	}
	return m
}

func (m *mockProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if m.createErr != nil {
		return m.createErr
	}
	handle := repositories.NormalizeHandle(project.Handle)
	if _, ok := m.projects[handle]; ok {
		return apperrors.ErrHandleTaken
	}
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.Handle = handle
	m.projects[handle] = project
	m.created = append(m.created, project)
	return nil
}

func (m *mockProjectRepo) GetByHandle(ctx context.Context, handle string) (*models.Project, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	project, ok := m.projects[repositories.NormalizeHandle(handle)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return project, nil
}

func (m *mockProjectRepo) ListHandles(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	handles := make([]string, 0, len(m.projects))
	for h := range m.projects {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles, nil
}

// mockFeatureRepo is an in-memory FeatureRepository with a scripted
// similarity search result.
type mockFeatureRepo struct {
	repositories.FeatureRepository
	features map[uuid.UUID]*models.Feature
	created  []*models.Feature
	sources  []*models.FeatureSource
	appended map[uuid.UUID][]string

	similar   []models.SimilarFeature
	searchErr error
	createErr error
	sourceErr error
	appendErr error
	embedErr  error

	searchCalls   int
	lastProjectID uuid.UUID
	lastThreshold float64
	lastLimit     int
	embedded      map[uuid.UUID][]float32
}

func newMockFeatureRepo() *mockFeatureRepo {
	return &mockFeatureRepo{
		features: make(map[uuid.UUID]*models.Feature),
		appended: make(map[uuid.UUID][]string),
		embedded: make(map[uuid.UUID][]float32),
	}
}

func (m *mockFeatureRepo) Create(ctx context.Context, feature *models.Feature) error {
	if m.createErr != nil {
		return m.createErr
	}
	if feature.ID == uuid.Nil {
		feature.ID = uuid.New()
	}
	m.features[feature.ID] = feature
	m.created = append(m.created, feature)
	return nil
}

func (m *mockFeatureRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	feature, ok := m.features[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return feature, nil
}

func (m *mockFeatureRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if m.embedErr != nil {
		return m.embedErr
	}
	m.embedded[id] = embedding
	return nil
}

func (m *mockFeatureRepo) SearchSimilar(ctx context.Context, projectID uuid.UUID, embedding []float32, threshold float64, limit int) ([]models.SimilarFeature, error) {
	m.searchCalls++
	m.lastProjectID = projectID
	m.lastThreshold = threshold
	m.lastLimit = limit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.similar, nil
}

func (m *mockFeatureRepo) AppendDescription(ctx context.Context, id uuid.UUID, addition string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended[id] = append(m.appended[id], addition)
	return nil
}

func (m *mockFeatureRepo) AddSource(ctx context.Context, source *models.FeatureSource) error {
	if m.sourceErr != nil {
		return m.sourceErr
	}
	for _, s := range m.sources {
		if s.FeatureID == source.FeatureID && s.CastID == source.CastID {
			return apperrors.ErrConflict
		}
	}
	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	m.sources = append(m.sources, source)
	return nil
}

func (m *mockFeatureRepo) CountSources(ctx context.Context, featureID uuid.UUID) (int, error) {
	count := 0
	for _, s := range m.sources {
		if s.FeatureID == featureID {
			count++
		}
	}
	return count, nil
}

// mockTagRepo is an in-memory TagRepository.
type mockTagRepo struct {
	repositories.TagRepository
	tags      map[string]*models.Tag
	attached  map[uuid.UUID][]uuid.UUID
	getErr    error
	attachErr error
}

func newMockTagRepo() *mockTagRepo {
	m := &mockTagRepo{
		tags:     make(map[string]*models.Tag),
		attached: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, name := range models.PredefinedTagNames {
		m.tags[name] = &models.Tag{ID: uuid.New(), Name: name, TagType: models.TagTypePredefined}
	}
	return m
}

func (m *mockTagRepo) GetOrCreate(ctx context.Context, name, tagType string) (*models.Tag, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if tag, ok := m.tags[name]; ok {
		return tag, nil
	}
	tag := &models.Tag{ID: uuid.New(), Name: name, TagType: tagType}
	m.tags[name] = tag
	return tag, nil
}

func (m *mockTagRepo) AttachToFeature(ctx context.Context, featureID uuid.UUID, tagIDs []uuid.UUID) error {
	if m.attachErr != nil {
		return m.attachErr
	}
	m.attached[featureID] = append(m.attached[featureID], tagIDs...)
	return nil
}

// mockMentionLogRepo is an in-memory MentionLogRepository with a scripted
// per-author count.
type mockMentionLogRepo struct {
	repositories.MentionLogRepository
	logs      []*models.BotMentionLog
	count     int
	countErr  error
	existsErr error
	createErr error
}

func newMockMentionLogRepo() *mockMentionLogRepo {
	return &mockMentionLogRepo{}
}

func (m *mockMentionLogRepo) Create(ctx context.Context, log *models.BotMentionLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.logs {
		if existing.CastID == log.CastID {
			return apperrors.ErrConflict
		}
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockMentionLogRepo) ExistsByCastID(ctx context.Context, castID string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, log := range m.logs {
		if log.CastID == castID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMentionLogRepo) CountByAuthorSince(ctx context.Context, authorFID int64, since time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.count, nil
}
