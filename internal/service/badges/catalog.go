package badges

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/koodecode/progression/internal/models"
)

// catalogFile is the YAML shape of a badge catalog seed file.
type catalogFile struct {
	Badges []catalogEntry `yaml:"badges"`
}

type catalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	IconURL     string `yaml:"icon_url"`
	Criteria    string `yaml:"criteria"`
	Threshold   int    `yaml:"threshold"`
	Category    string `yaml:"category"`
	Rarity      string `yaml:"rarity"`
}

// LoadCatalogFile parses a badge catalog seed file.
func LoadCatalogFile(path string) ([]models.Badge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse badge catalog %s: %w", path, err)
	}

	badges := make([]models.Badge, 0, len(file.Badges))
	for _, entry := range file.Badges {
		if entry.Name == "" || entry.Threshold <= 0 {
			return nil, fmt.Errorf("badge %q: name and positive threshold required: %w", entry.Name, models.ErrValidation)
		}
		badges = append(badges, models.Badge{
			Name:         entry.Name,
			Description:  entry.Description,
			Type:         entry.Type,
			IconURL:      entry.IconURL,
			CriteriaType: models.CriteriaType(entry.Criteria),
			Threshold:    entry.Threshold,
			Category:     entry.Category,
			Rarity:       entry.Rarity,
			IsActive:     true,
		})
	}
	return badges, nil
}

// SyncCatalog upserts seed badges into the catalog by name. Existing
// badges keep their id (and therefore their awards) and take the seed's
// criteria and display fields.
func (s *Service) SyncCatalog(seed []models.Badge) error {
	for i := range seed {
		badge := seed[i]

		existing, err := s.badgeRepo.GetByName(badge.Name)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("failed to look up badge %q: %w", badge.Name, err)
			}
			if err := s.badgeRepo.Create(&badge); err != nil {
				return fmt.Errorf("failed to create badge %q: %w", badge.Name, err)
			}
			s.log.Info().Str("badge", badge.Name).Msg("Badge created from catalog seed")
			continue
		}

		existing.Description = badge.Description
		existing.Type = badge.Type
		existing.IconURL = badge.IconURL
		existing.CriteriaType = badge.CriteriaType
		existing.Threshold = badge.Threshold
		existing.Category = badge.Category
		existing.Rarity = badge.Rarity
		existing.IsActive = true
		if err := s.badgeRepo.Update(existing); err != nil {
			return fmt.Errorf("failed to update badge %q: %w", badge.Name, err)
		}
	}
	return nil
}
