package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/heywood8/money-tracker-sub005/internal/errors"
	"github.com/heywood8/money-tracker-sub005/internal/models"
	"github.com/heywood8/money-tracker-sub005/internal/validator"
)

// categoryService handles the spending/income taxonomy.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category under an optional parent.
func (s *categoryService) CreateCategory(draft CategoryDraft) (*models.Category, error) {
	if err := validator.Struct(draft); err != nil {
		return nil, err
	}

	if draft.ParentID != nil {
		var parent models.Category
		if err := s.db.Where("id = ?", *draft.ParentID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
			}
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
	}

	category := &models.Category{
		Name:                draft.Name,
		Kind:                draft.Kind,
		Type:                draft.Type,
		ParentID:            draft.ParentID,
		Icon:                draft.Icon,
		Color:               draft.Color,
		ExcludeFromForecast: draft.ExcludeFromForecast,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	return category, nil
}

// UpdateCategory updates an existing category's display fields. Reparenting
// goes through MoveCategory so the cycle check cannot be bypassed.
func (s *categoryService) UpdateCategory(categoryID string, fields CategoryUpdateFields) (*models.Category, error) {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Icon != nil {
		updates["icon"] = *fields.Icon
	}
	if fields.Color != nil {
		updates["color"] = *fields.Color
	}
	if fields.ExcludeFromForecast != nil {
		updates["exclude_from_forecast"] = *fields.ExcludeFromForecast
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
	}

	return category, nil
}

// DeleteCategory deletes a category. The child check runs before the usage
// check and short-circuits it: both are independent queries and a category
// with children is rejected even when no operation references it.
func (s *categoryService) DeleteCategory(categoryID string) error {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return err
	}

	var childCount int64
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if childCount > 0 {
		return apperrors.WithMessage(apperrors.ErrCategoryHasChildren,
			fmt.Sprintf("Cannot delete category: it has %d subcategories", childCount))
	}

	usage, err := s.CountCategoryUsage(categoryID)
	if err != nil {
		return err
	}
	if usage > 0 {
		return apperrors.WithMessage(apperrors.ErrCategoryInUse,
			fmt.Sprintf("Cannot delete category: %d operations reference it", usage))
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// MoveCategory reparents a category. Moving to the root (nil parent) is
// always cycle-free; otherwise the new parent's ancestor chain is walked
// upward and the move is rejected without writing if the category appears in
// it.
func (s *categoryService) MoveCategory(categoryID string, newParentID *string) error {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return err
	}

	if newParentID != nil {
		if *newParentID == categoryID {
			return apperrors.ErrCategoryCycle
		}

		parent, err := s.GetCategoryByID(*newParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrCategoryNotFound) {
				return apperrors.WithMessage(apperrors.ErrCategoryNotFound, "new parent category not found")
			}
			return err
		}

		// Walk the ancestor chain of the new parent. The visited set
		// guards the walk against a corrupted store; a healthy tree
		// terminates at a root.
		visited := map[string]bool{parent.ID: true}
		cur := parent
		for cur.ParentID != nil {
			if *cur.ParentID == categoryID {
				return apperrors.ErrCategoryCycle
			}
			if visited[*cur.ParentID] {
				break
			}
			visited[*cur.ParentID] = true

			next, err := s.GetCategoryByID(*cur.ParentID)
			if err != nil {
				return err
			}
			cur = next
		}
	}

	if err := s.db.Model(category).Update("parent_id", newParentID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// GetCategoryByID retrieves a category by ID.
func (s *categoryService) GetCategoryByID(categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &category, nil
}

// ListCategories lists categories, optionally filtered by type. Shadow
// categories are excluded unless explicitly requested.
func (s *categoryService) ListCategories(categoryType *models.CategoryType, includeShadow bool) ([]models.Category, error) {
	q := s.db.Model(&models.Category{})
	if categoryType != nil {
		q = q.Where("type = ?", *categoryType)
	}
	if !includeShadow {
		q = q.Where("is_shadow = ?", false)
	}

	var categories []models.Category
	if err := q.Order("name").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return categories, nil
}

// GetAllDescendants returns every transitive child of the category, not
// including the category itself. Breadth-first over the parent-pointer
// index; no recursive SQL so the traversal is portable across storage
// backends.
func (s *categoryService) GetAllDescendants(categoryID string) ([]models.Category, error) {
	if _, err := s.GetCategoryByID(categoryID); err != nil {
		return nil, err
	}

	var result []models.Category
	seen := map[string]bool{categoryID: true}
	frontier := []string{categoryID}

	for len(frontier) > 0 {
		var children []models.Category
		if err := s.db.Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}

		frontier = frontier[:0]
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			result = append(result, child)
			frontier = append(frontier, child.ID)
		}
	}

	return result, nil
}

// GetCategoryPath returns the root-to-node path for a category.
func (s *categoryService) GetCategoryPath(categoryID string) ([]models.Category, error) {
	cur, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	path := []models.Category{*cur}
	seen := map[string]bool{cur.ID: true}
	for cur.ParentID != nil && !seen[*cur.ParentID] {
		seen[*cur.ParentID] = true
		cur, err = s.GetCategoryByID(*cur.ParentID)
		if err != nil {
			return nil, err
		}
		path = append(path, *cur)
	}

	// Reverse: the walk collected node-to-root.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// EnsureShadowCategories guarantees exactly one shadow category per type,
// creating the missing ones. Runs at bootstrap.
func (s *categoryService) EnsureShadowCategories() (*models.ShadowCategories, error) {
	shadows := &models.ShadowCategories{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, categoryType := range []models.CategoryType{models.CategoryTypeExpense, models.CategoryTypeIncome} {
			var existing models.Category
			err := tx.Where("is_shadow = ? AND type = ?", true, categoryType).First(&existing).Error
			switch {
			case err == nil:
			case errors.Is(err, gorm.ErrRecordNotFound):
				existing = models.Category{
					Name:     "Balance adjustment",
					Kind:     models.CategoryKindEntry,
					Type:     categoryType,
					IsShadow: true,
				}
				if err := tx.Create(&existing).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternal, err)
				}
			default:
				return apperrors.Wrap(apperrors.ErrInternal, err)
			}

			cat := existing
			if categoryType == models.CategoryTypeExpense {
				shadows.Expense = &cat
			} else {
				shadows.Income = &cat
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return shadows, nil
}

// GetShadowCategories resolves the shadow pair without creating anything.
// Returns ErrShadowMissing when bootstrap has not run.
func (s *categoryService) GetShadowCategories() (*models.ShadowCategories, error) {
	var shadowCategories []models.Category
	if err := s.db.Where("is_shadow = ?", true).Find(&shadowCategories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	shadows := &models.ShadowCategories{}
	for i := range shadowCategories {
		cat := shadowCategories[i]
		switch cat.Type {
		case models.CategoryTypeExpense:
			shadows.Expense = &cat
		case models.CategoryTypeIncome:
			shadows.Income = &cat
		}
	}

	if shadows.Expense == nil || shadows.Income == nil {
		return nil, apperrors.ErrShadowMissing
	}
	return shadows, nil
}

// CategoryExists reports whether a category exists. A missing category is
// not an error.
func (s *categoryService) CategoryExists(categoryID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return count > 0, nil
}

// CountCategoryUsage counts journal operations referencing the category.
func (s *categoryService) CountCategoryUsage(categoryID string) (int64, error) {
	var count int64
	if err := s.db.Model(&models.Operation{}).Where("category_id = ?", categoryID).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return count, nil
}
