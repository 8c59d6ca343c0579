package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"github.com/khabaroff/mockhook/src/database"
	"github.com/khabaroff/mockhook/src/logging"
	"github.com/khabaroff/mockhook/src/models"
	"github.com/khabaroff/mockhook/src/repositories"
	"github.com/rs/zerolog"
)

const (
	// DefaultInstanceName is used when a caller does not name the instance
	DefaultInstanceName = "New Instance"
	// DefaultInstanceDescription accompanies DefaultInstanceName
	DefaultInstanceDescription = "A new mock API instance"
)

// InstanceService owns mock API instances and the items they hold
type InstanceService struct {
	store    repositories.DocumentStore
	ttl      time.Duration
	keyCache *ristretto.Cache[string, string] // api key -> instance id, verified on every hit
	creating atomic.Bool
	now      func() time.Time
	log      zerolog.Logger
}

// NewInstanceService creates a new instance service. Instances older than
// ttl are evicted by the lazy sweep.
func NewInstanceService(store repositories.DocumentStore, ttl time.Duration) *InstanceService {
	s := &InstanceService{
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logging.NewLogger("instance_store"),
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1e5,
		MaxCost:     1 << 14,
		BufferItems: 64,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("api key cache disabled")
	} else {
		s.keyCache = cache
	}

	return s
}

// Close releases the key cache
func (s *InstanceService) Close() {
	if s.keyCache != nil {
		s.keyCache.Close()
	}
}

func (s *InstanceService) cacheKey(apiKey, instanceID string) {
	if s.keyCache != nil {
		s.keyCache.Set(apiKey, instanceID, 1)
	}
}

func (s *InstanceService) forgetKey(apiKey string) {
	if s.keyCache != nil {
		s.keyCache.Del(apiKey)
	}
}

func newAPIKey() string {
	return string(models.KeyPrefixTemporary) + uuid.NewString()
}

// CreateInstance creates an instance with a fresh id and API key. Only one
// creation runs at a time; concurrent callers get ErrCreationInProgress.
func (s *InstanceService) CreateInstance(ctx context.Context, name, description string) (*models.Instance, error) {
	if !s.creating.CompareAndSwap(false, true) {
		return nil, ErrCreationInProgress
	}
	defer s.creating.Store(false)

	if _, err := s.Cleanup(ctx); err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = DefaultInstanceName
		if description == "" {
			description = DefaultInstanceDescription
		}
	}

	now := s.now()
	inst := &models.Instance{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    description,
		APIKey:         newAPIKey(),
		CreatedAt:      now,
		LastAccessedAt: now,
		UpdatedAt:      now,
		Items:          []models.Item{},
	}

	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		doc.Instances[inst.ID] = inst
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save instance: %w", err)
	}

	var stored *models.Instance
	err = s.store.View(ctx, func(doc *database.Document) error {
		if got := doc.Instances[inst.ID]; got != nil && got.APIKey == inst.APIKey {
			stored = got
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify instance: %w", err)
	}
	if stored == nil {
		return nil, ErrVerificationFailed
	}

	s.cacheKey(stored.APIKey, stored.ID)
	s.log.Info().Str("instance_id", stored.ID).Msg("instance created")
	return stored, nil
}

// touch runs fn against a live instance, stamps lastAccessedAt and persists.
// It returns nil without writing when the instance does not exist.
func (s *InstanceService) touch(ctx context.Context, instanceID string, fn func(inst *models.Instance, now time.Time) error) (*models.Instance, error) {
	var result *models.Instance
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		inst := doc.Instances[instanceID]
		if inst == nil {
			return false, nil
		}
		now := s.now()
		if fn != nil {
			if err := fn(inst, now); err != nil {
				return false, err
			}
		}
		inst.Touch(now)
		result = inst
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetInstance returns the instance, or nil if it does not exist
func (s *InstanceService) GetInstance(ctx context.Context, instanceID string) (*models.Instance, error) {
	inst, err := s.touch(ctx, instanceID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return inst, nil
}

// GetInstanceByAPIKey returns the instance holding apiKey, or nil
func (s *InstanceService) GetInstanceByAPIKey(ctx context.Context, apiKey string) (*models.Instance, error) {
	if !models.HasKnownKeyPrefix(apiKey) {
		return nil, nil
	}

	var result *models.Instance
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		var inst *models.Instance
		if id, ok := s.lookupCachedKey(apiKey); ok {
			if candidate := doc.Instances[id]; candidate != nil && candidate.APIKey == apiKey {
				inst = candidate
			}
		}
		if inst == nil {
			for _, candidate := range doc.Instances {
				if candidate.APIKey == apiKey {
					inst = candidate
					break
				}
			}
		}
		if inst == nil {
			return false, nil
		}
		inst.Touch(s.now())
		result = inst
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	if result != nil {
		s.cacheKey(apiKey, result.ID)
	} else {
		s.forgetKey(apiKey)
	}
	return result, nil
}

func (s *InstanceService) lookupCachedKey(apiKey string) (string, bool) {
	if s.keyCache == nil {
		return "", false
	}
	return s.keyCache.Get(apiKey)
}

// ValidateAPIKey reports whether apiKey is the exact key of the instance.
// Failed checks do not touch the document.
func (s *InstanceService) ValidateAPIKey(ctx context.Context, instanceID, apiKey string) (bool, error) {
	if apiKey == "" {
		return false, nil
	}

	var valid bool
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		inst := doc.Instances[instanceID]
		if inst == nil || inst.APIKey != apiKey {
			return false, nil
		}
		inst.Touch(s.now())
		valid = true
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate api key: %w", err)
	}
	return valid, nil
}

// ListInstances returns every live instance, oldest first
func (s *InstanceService) ListInstances(ctx context.Context) ([]*models.Instance, error) {
	if _, err := s.Cleanup(ctx); err != nil {
		return nil, err
	}

	var out []*models.Instance
	err := s.store.View(ctx, func(doc *database.Document) error {
		out = make([]*models.Instance, 0, len(doc.Instances))
		for _, inst := range doc.Instances {
			out = append(out, inst)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteInstance removes the instance and every item it owns
func (s *InstanceService) DeleteInstance(ctx context.Context, instanceID string) (bool, error) {
	var apiKey string
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		inst := doc.Instances[instanceID]
		if inst == nil {
			return false, nil
		}
		apiKey = inst.APIKey
		delete(doc.Instances, instanceID)
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete instance: %w", err)
	}
	if apiKey == "" {
		return false, nil
	}

	s.forgetKey(apiKey)
	s.log.Info().Str("instance_id", instanceID).Msg("instance deleted")
	return true, nil
}

// GetAPIKey returns the instance's key, or "" if the instance does not exist
func (s *InstanceService) GetAPIKey(ctx context.Context, instanceID string) (string, error) {
	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		return "", err
	}
	if inst == nil {
		return "", nil
	}
	return inst.APIKey, nil
}

// CreateItem appends a new item to the instance. It returns nil without
// writing anything when the instance does not exist.
func (s *InstanceService) CreateItem(ctx context.Context, instanceID string, input models.ItemInput) (*models.Item, error) {
	if err := validateItemInput(&input); err != nil {
		return nil, err
	}

	var created *models.Item
	_, err := s.touch(ctx, instanceID, func(inst *models.Instance, now time.Time) error {
		item := models.Item{
			ID:          uuid.NewString(),
			Name:        input.Name,
			Description: input.Description,
			Method:      input.Method,
			Path:        input.Path,
			Response:    input.Response,
			Status:      input.Status,
			Headers:     input.Headers,
			Delay:       input.Delay,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		inst.Items = append(inst.Items, item)
		inst.UpdatedAt = now
		created = &item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return created, nil
}

// GetItem returns one item, or nil if the instance or item does not exist
func (s *InstanceService) GetItem(ctx context.Context, instanceID, itemID string) (*models.Item, error) {
	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil || inst == nil {
		return nil, err
	}
	idx := inst.FindItem(itemID)
	if idx < 0 {
		return nil, nil
	}
	item := inst.Items[idx]
	return &item, nil
}

// GetAllItems returns the instance's items in creation order, or nil if the
// instance does not exist
func (s *InstanceService) GetAllItems(ctx context.Context, instanceID string) ([]models.Item, error) {
	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil || inst == nil {
		return nil, err
	}
	if inst.Items == nil {
		return []models.Item{}, nil
	}
	return inst.Items, nil
}

// ListItems returns one 1-indexed page of the instance's items, or nil if
// the instance does not exist
func (s *InstanceService) ListItems(ctx context.Context, instanceID string, page, limit int) (*models.ItemPage, error) {
	if page < 1 || limit < 1 {
		return nil, ErrInvalidPagination
	}

	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil || inst == nil {
		return nil, err
	}

	return Paginate(inst.Items, page, limit), nil
}

// Paginate slices items into the requested page. page and limit must be >= 1.
func Paginate(items []models.Item, page, limit int) *models.ItemPage {
	total := len(items)
	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &models.ItemPage{
		Items: append([]models.Item{}, items[start:end]...),
		Pagination: models.Pagination{
			CurrentPage:     page,
			TotalPages:      totalPages,
			TotalItems:      total,
			ItemsPerPage:    limit,
			HasNextPage:     page < totalPages,
			HasPreviousPage: page > 1,
		},
	}
}

// UpdateItem merges patch over the stored item. id and createdAt never
// change and updatedAt always moves forward. It returns nil if the
// instance or item does not exist.
func (s *InstanceService) UpdateItem(ctx context.Context, instanceID, itemID string, patch models.ItemPatch) (*models.Item, error) {
	if err := validateItemPatch(&patch); err != nil {
		return nil, err
	}

	var updated *models.Item
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		inst := doc.Instances[instanceID]
		if inst == nil {
			return false, nil
		}
		idx := inst.FindItem(itemID)
		if idx < 0 {
			return false, nil
		}

		now := s.now()
		item := &inst.Items[idx]
		applyPatch(item, patch)
		if !now.After(item.UpdatedAt) {
			now = item.UpdatedAt.Add(time.Nanosecond)
		}
		item.UpdatedAt = now
		inst.UpdatedAt = now
		inst.Touch(now)

		copied := *item
		updated = &copied
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return updated, nil
}

// DeleteItem removes one item. It reports whether the item existed.
func (s *InstanceService) DeleteItem(ctx context.Context, instanceID, itemID string) (bool, error) {
	var deleted bool
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		inst := doc.Instances[instanceID]
		if inst == nil {
			return false, nil
		}
		idx := inst.FindItem(itemID)
		if idx < 0 {
			return false, nil
		}

		now := s.now()
		inst.Items = append(inst.Items[:idx], inst.Items[idx+1:]...)
		inst.UpdatedAt = now
		inst.Touch(now)
		deleted = true
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return deleted, nil
}

// ListAllItems returns every item of every live instance, tagged with its owner
func (s *InstanceService) ListAllItems(ctx context.Context) ([]models.CatalogItem, error) {
	instances, err := s.ListInstances(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.CatalogItem, 0)
	for _, inst := range instances {
		for _, item := range inst.Items {
			out = append(out, models.CatalogItem{
				Item:         item,
				InstanceID:   inst.ID,
				InstanceName: inst.Name,
			})
		}
	}
	return out, nil
}

// FindItemByRoute returns the instance and its first item matching method
// and path. Paths compare without surrounding slashes. The instance is nil
// when it does not exist; the item is nil when nothing matches.
func (s *InstanceService) FindItemByRoute(ctx context.Context, instanceID, method, path string) (*models.Instance, *models.Item, error) {
	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil || inst == nil {
		return nil, nil, err
	}

	want := strings.Trim(path, "/")
	for i := range inst.Items {
		item := inst.Items[i]
		if !strings.EqualFold(item.Method, method) {
			continue
		}
		if strings.Trim(item.Path, "/") == want {
			return inst, &item, nil
		}
	}
	return inst, nil, nil
}

// Cleanup evicts instances created before the retention window. The
// document is written only when something was removed.
func (s *InstanceService) Cleanup(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)

	var evicted []string
	err := s.store.Update(ctx, func(doc *database.Document) (bool, error) {
		for id, inst := range doc.Instances {
			if inst.ExpiredAt(cutoff) {
				evicted = append(evicted, inst.APIKey)
				delete(doc.Instances, id)
			}
		}
		return len(evicted) > 0, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evict instances: %w", err)
	}

	for _, key := range evicted {
		s.forgetKey(key)
	}
	if len(evicted) > 0 {
		s.log.Info().Int("evicted", len(evicted)).Msg("expired instances removed")
	}
	return len(evicted), nil
}

func validateItemInput(input *models.ItemInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if input.Method == "" {
		input.Method = models.DefaultItemMethod
	}
	input.Method = strings.ToUpper(input.Method)
	if input.Status == 0 {
		input.Status = models.DefaultItemStatus
	}
	if input.Headers == nil {
		input.Headers = map[string]string{}
	}
	if len(input.Response) == 0 {
		input.Response = []byte("null")
	}
	return checkItemBounds(input.Status, input.Delay)
}

func validateItemPatch(patch *models.ItemPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	status, delay := models.DefaultItemStatus, 0
	if patch.Status != nil {
		status = *patch.Status
	}
	if patch.Delay != nil {
		delay = *patch.Delay
	}
	return checkItemBounds(status, delay)
}

func checkItemBounds(status, delay int) error {
	if status < 100 || status > 599 {
		return fmt.Errorf("%w: status must be between 100 and 599", ErrInvalidInput)
	}
	if delay < 0 || delay > models.MaxItemDelay {
		return fmt.Errorf("%w: delay must be between 0 and %d ms", ErrInvalidInput, models.MaxItemDelay)
	}
	return nil
}

func applyPatch(item *models.Item, patch models.ItemPatch) {
	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Method != nil {
		item.Method = strings.ToUpper(*patch.Method)
		if item.Method == "" {
			item.Method = models.DefaultItemMethod
		}
	}
	if patch.Path != nil {
		item.Path = *patch.Path
	}
	if patch.Response != nil {
		item.Response = *patch.Response
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Headers != nil {
		item.Headers = *patch.Headers
	}
	if patch.Delay != nil {
		item.Delay = *patch.Delay
	}
}
