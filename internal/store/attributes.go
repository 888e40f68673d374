package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/edumfa/edumfa-go/internal/models"
)

// SetCustomAttribute creates or replaces a custom user attribute.
func (s *Store) SetCustomAttribute(ctx context.Context, attribute models.CustomAttribute) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row customAttributeRow
		err := tx.Where("user_id = ? AND resolver = ? AND realm_id = ? AND key = ?",
			attribute.UID, attribute.Resolver, attribute.RealmID, attribute.Key).First(&row).Error
		switch {
		case isNotFound(err):
			row = customAttributeRow{
				UserID:   attribute.UID,
				Resolver: attribute.Resolver,
				RealmID:  attribute.RealmID,
				Key:      attribute.Key,
			}
		case err != nil:
			return err
		}
		row.Value = attribute.Value
		row.Type = attribute.Type
		return tx.Save(&row).Error
	})
}

func (s *Store) GetCustomAttributes(ctx context.Context, uid, resolver string, realmID int64) (map[string]string, error) {
	var rows []customAttributeRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND resolver = ? AND realm_id = ?", uid, resolver, realmID).
		Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// DeleteCustomAttribute removes one attribute, or all of them when key is empty.
func (s *Store) DeleteCustomAttribute(ctx context.Context, uid, resolver string, realmID int64, key string) (int64, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND resolver = ? AND realm_id = ?", uid, resolver, realmID)
	if len(key) > 0 {
		query = query.Where("key = ?", key)
	}
	result := query.Delete(&customAttributeRow{})
	return result.RowsAffected, result.Error
}

// CountCustomAttributes counts the custom attributes of all users.
func (s *Store) CountCustomAttributes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&customAttributeRow{}).Count(&count).Error
	return count, err
}

// DeleteUserData removes custom attributes and token ownerships of a user
// in a resolver.
func (s *Store) DeleteUserData(ctx context.Context, uid, resolver string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND resolver = ?", uid, resolver).
			Delete(&customAttributeRow{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND resolver = ?", uid, resolver).
			Delete(&tokenOwnerRow{}).Error
	})
}

// AddTokenOwner assigns the token with serial to the user, creating the
// token row when needed.
func (s *Store) AddTokenOwner(ctx context.Context, serial string, owner models.TokenOwner) (models.TokenOwner, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token tokenRow
		err := tx.Where("serial = ?", serial).First(&token).Error
		switch {
		case isNotFound(err):
			token = tokenRow{Serial: serial, TokenType: "hotp", Active: true}
			if err := tx.Create(&token).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}
		row := tokenOwnerRow{
			TokenID:      token.ID,
			Resolver:     owner.Resolver,
			ResolverType: owner.ResolverType,
			UserID:       owner.UserID,
			RealmID:      owner.RealmID,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		owner.ID = row.ID
		owner.TokenID = token.ID
		owner.Serial = serial
		return nil
	})
	return owner, err
}

// GetTokenOwners lists the tokens owned by uid in resolver.
func (s *Store) GetTokenOwners(ctx context.Context, uid, resolver string) ([]models.TokenOwner, error) {
	var rows []struct {
		tokenOwnerRow
		Serial string
	}
	err := s.db.WithContext(ctx).
		Table("tokenowner").
		Select("tokenowner.*, token.serial AS serial").
		Joins("LEFT JOIN token ON token.id = tokenowner.token_id").
		Where("tokenowner.user_id = ? AND tokenowner.resolver = ?", uid, resolver).
		Order("token.serial").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.TokenOwner, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.TokenOwner{
			ID:           row.ID,
			TokenID:      row.TokenID,
			Serial:       row.Serial,
			Resolver:     row.Resolver,
			ResolverType: row.ResolverType,
			UserID:       row.UserID,
			RealmID:      row.RealmID,
		})
	}
	return out, nil
}
