package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edumfa/edumfa-go/internal/models"
)

func (s *Store) ListResolverRegistrations(ctx context.Context) ([]models.ResolverRegistration, error) {
	var rows []resolverRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list resolvers: %w", err)
	}
	out := make([]models.ResolverRegistration, 0, len(rows))
	for _, row := range rows {
		data := models.BasicConfig{}
		if len(row.Data) > 0 {
			if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
				return nil, fmt.Errorf("invalid data for resolver %s: %w", row.Name, err)
			}
		}
		out = append(out, models.ResolverRegistration{
			Name:     row.Name,
			Type:     row.Type,
			Priority: row.Priority,
			Data:     data,
		})
	}
	return out, nil
}

// SaveResolverRegistration creates or replaces the resolver by name.
func (s *Store) SaveResolverRegistration(ctx context.Context, registration models.ResolverRegistration) error {
	data, err := json.Marshal(registration.Data)
	if err != nil {
		return err
	}
	row := resolverRow{
		Name:     registration.Name,
		Type:     registration.Type,
		Priority: registration.Priority,
		Data:     string(data),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"rtype", "priority", "data"}),
	}).Create(&row).Error
}

func (s *Store) DeleteResolverRegistration(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row resolverRow
		if err := tx.Where("name = ?", name).First(&row).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s", models.ErrResolverNotFound, name)
			}
			return err
		}
		if err := tx.Where("resolver_id = ?", row.ID).Delete(&resolverRealmRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
}

func (s *Store) ListRealms(ctx context.Context) ([]models.Realm, error) {
	db := s.db.WithContext(ctx)

	var realms []realmRow
	if err := db.Order("name").Find(&realms).Error; err != nil {
		return nil, fmt.Errorf("failed to list realms: %w", err)
	}

	var resolverRows []resolverRow
	if err := db.Select("id", "name").Find(&resolverRows).Error; err != nil {
		return nil, err
	}
	resolverNames := make(map[int64]string, len(resolverRows))
	for _, row := range resolverRows {
		resolverNames[row.ID] = row.Name
	}

	var memberships []resolverRealmRow
	if err := db.Find(&memberships).Error; err != nil {
		return nil, err
	}
	byRealm := map[int64][]models.RealmResolver{}
	for _, membership := range memberships {
		name, ok := resolverNames[membership.ResolverID]
		if !ok {
			continue
		}
		byRealm[membership.RealmID] = append(byRealm[membership.RealmID], models.RealmResolver{
			Name:     name,
			Priority: membership.Priority,
		})
	}

	out := make([]models.Realm, 0, len(realms))
	for _, row := range realms {
		members := byRealm[row.ID]
		sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
		out = append(out, models.Realm{
			ID:        row.ID,
			Name:      row.Name,
			Default:   row.DefaultRealm,
			Resolvers: members,
		})
	}
	return out, nil
}

// SaveRealm creates or updates the realm and replaces its memberships. Every
// member must be a stored resolver. The stored realm is returned with its id.
func (s *Store) SaveRealm(ctx context.Context, realm models.Realm) (models.Realm, error) {
	out := realm.Clone()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row realmRow
		err := tx.Where("name = ?", realm.Name).First(&row).Error
		switch {
		case isNotFound(err):
			row = realmRow{Name: realm.Name}
		case err != nil:
			return err
		}

		if realm.Default {
			if err := tx.Model(&realmRow{}).Where("name <> ?", realm.Name).
				Update("default_realm", false).Error; err != nil {
				return err
			}
		}
		row.DefaultRealm = realm.Default
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out.ID = row.ID

		if err := tx.Where("realm_id = ?", row.ID).Delete(&resolverRealmRow{}).Error; err != nil {
			return err
		}
		for _, member := range realm.Resolvers {
			var resolver resolverRow
			if err := tx.Where("name = ?", member.Name).First(&resolver).Error; err != nil {
				if isNotFound(err) {
					return fmt.Errorf("%w: %s", models.ErrResolverNotFound, member.Name)
				}
				return err
			}
			if err := tx.Create(&resolverRealmRow{
				ResolverID: resolver.ID,
				RealmID:    row.ID,
				Priority:   member.Priority,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) DeleteRealm(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row realmRow
		if err := tx.Where("name = ?", name).First(&row).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s", models.ErrRealmNotFound, name)
			}
			return err
		}
		if err := tx.Where("realm_id = ?", row.ID).Delete(&resolverRealmRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
}

// SetDefaultRealm marks name as the only default realm. An empty name clears it.
func (s *Store) SetDefaultRealm(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(name) > 0 {
			var count int64
			if err := tx.Model(&realmRow{}).Where("name = ?", name).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: %s", models.ErrRealmNotFound, name)
			}
		}
		if err := tx.Model(&realmRow{}).Where("1 = 1").Update("default_realm", false).Error; err != nil {
			return err
		}
		if len(name) == 0 {
			return nil
		}
		return tx.Model(&realmRow{}).Where("name = ?", name).Update("default_realm", true).Error
	})
}
