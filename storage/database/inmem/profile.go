package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) query() []profile.Profile {
	profiles := make([]profile.Profile, 0, len(repo.db.profiles))
	for _, p := range repo.db.profiles {
		profiles = append(profiles, *p)
	}
	return profiles
}

func (repo *profileRepository) CheckUniqueness(_ context.Context, identityNumber, email string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	n := len(excludedIDs)
	if n > 1 {
		excludedIDs = append([]string(nil), excludedIDs...)
		sort.Strings(excludedIDs)
	}

	for _, p := range repo.query() {
		if isExcluded(p.ID, excludedIDs, n) {
			continue
		}
		if p.IdentityNumber == identityNumber {
			return profile.ErrIdentityNumberExists
		}
		if p.Email == email {
			return profile.ErrEmailExists
		}
	}
	return nil
}

func (repo *profileRepository) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if err := repo.CheckUniqueness(ctx, p.IdentityNumber, p.Email); err != nil {
		return profile.Profile{}, err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.profiles[p.ID] = &p
	return p, nil
}

func (repo *profileRepository) GetProfile(_ context.Context, id string) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return *p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) find(match func(profile.Profile) bool) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.query() {
		if match(p) {
			return p, nil
		}
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) GetProfileByIdentityNumber(_ context.Context, identityNumber string) (profile.Profile, error) {
	return repo.find(func(p profile.Profile) bool { return p.IdentityNumber == identityNumber })
}

func (repo *profileRepository) GetProfileByEmail(_ context.Context, email string) (profile.Profile, error) {
	return repo.find(func(p profile.Profile) bool { return p.Email == email })
}

func (repo *profileRepository) filter(filter profile.QueryFilter) []profile.Profile {
	profiles := make([]profile.Profile, 0)
	if filter.Scope.Deny {
		return profiles
	}
	search := strings.ToLower(filter.Search)

	for _, p := range repo.query() {
		if filter.Scope.SchoolID != "" && p.SchoolID.String != filter.Scope.SchoolID {
			continue
		}
		if len(filter.Roles) > 0 {
			found := false
			for _, r := range filter.Roles {
				if p.Role == r {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.FullName), search) &&
			!strings.Contains(strings.ToLower(p.Email), search) &&
			!strings.Contains(strings.ToLower(p.IdentityNumber), search) {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

func (repo *profileRepository) QueryProfiles(_ context.Context, filter profile.QueryFilter, ordering []core.DBOrdering) ([]profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := repo.filter(filter)
	sort.SliceStable(profiles, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := profileField(profiles[i], ord.Field), profileField(profiles[j], ord.Field)
			if a == b {
				continue
			}
			return (a < b) == ord.Ascending
		}
		return profiles[i].ID < profiles[j].ID
	})
	return profiles, nil
}

func profileField(p profile.Profile, field string) string {
	switch field {
	case "full_name":
		return p.FullName
	case "email":
		return p.Email
	case "identity_number":
		return p.IdentityNumber
	case "role":
		return string(p.Role)
	case "created_at":
		return p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
	}
	return ""
}

func (repo *profileRepository) CountProfiles(_ context.Context, filter profile.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.filter(filter)), nil
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if err := repo.CheckUniqueness(ctx, p.IdentityNumber, p.Email, p.ID); err != nil {
		return profile.Profile{}, err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[p.ID]; !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	repo.db.profiles[p.ID] = &p
	return p, nil
}

func (repo *profileRepository) DeleteProfile(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.profiles, id)
	return nil
}

// isExcluded searches the n sorted excluded ids for id.
func isExcluded(id string, excludedIDs []string, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.SearchStrings(excludedIDs, id)
	return idx < n && excludedIDs[idx] == id
}
