package service

import (
	"context"
	"encoding/json"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/util"

	"go.uber.org/zap"
)

const quickAddLimit = 3

// MenuService serves the catalog to diners
type MenuService struct {
	repo     Transactor
	cache    MenuCache
	settings Settings
	logger   *zap.Logger
}

// NewMenuService creates a new menu service. cache may be nil.
func NewMenuService(repo Transactor, cache MenuCache, settings Settings) *MenuService {
	return &MenuService{
		repo:     repo,
		cache:    cache,
		settings: settings,
		logger:   util.GetLogger(),
	}
}

// MenuCategory is a category with its orderable items
type MenuCategory struct {
	models.Category
	Items []models.MenuItem `json:"items"`
}

// Menu is what a diner browses after scanning
type Menu struct {
	RestaurantID   string            `json:"restaurantId"`
	RestaurantName string            `json:"restaurantName"`
	Categories     []MenuCategory    `json:"categories"`
	QuickAddItems  []models.MenuItem `json:"quickAddItems"`
}

// GetMenu returns a restaurant's available items grouped by category plus
// its quick-add items
func (s *MenuService) GetMenu(ctx context.Context, restaurantID string) (*Menu, error) {
	ctx, span := util.StartSpan(ctx, "MenuService.GetMenu")
	defer span.End()

	if menu, ok := s.cached(ctx, restaurantID); ok {
		return menu, nil
	}

	restaurant, err := s.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, lookup(err, apperr.ErrRestaurantNotFound)
	}

	categories, err := s.repo.ListCategories(ctx, restaurantID)
	if err != nil {
		return nil, classify("list categories", err)
	}
	items, err := s.repo.ListAvailableMenuItems(ctx, restaurantID)
	if err != nil {
		return nil, classify("list menu items", err)
	}
	quick, err := s.repo.ListQuickAddItems(ctx, restaurantID, quickAddLimit)
	if err != nil {
		return nil, classify("list quick add items", err)
	}

	byCategory := make(map[string][]models.MenuItem, len(categories))
	for _, it := range items {
		byCategory[it.CategoryID] = append(byCategory[it.CategoryID], it)
	}

	menu := &Menu{
		RestaurantID:   restaurant.ID,
		RestaurantName: restaurant.Name,
		Categories:     make([]MenuCategory, 0, len(categories)),
		QuickAddItems:  quick,
	}
	if menu.QuickAddItems == nil {
		menu.QuickAddItems = []models.MenuItem{}
	}
	for _, c := range categories {
		catItems := byCategory[c.ID]
		if len(catItems) == 0 {
			continue
		}
		menu.Categories = append(menu.Categories, MenuCategory{Category: c, Items: catItems})
	}

	s.store(ctx, restaurantID, menu)
	return menu, nil
}

// SetAvailability toggles whether an item can be ordered and drops the
// restaurant's cached menu
func (s *MenuService) SetAvailability(ctx context.Context, menuItemID string, available bool) (*models.MenuItem, error) {
	ctx, span := util.StartSpan(ctx, "MenuService.SetAvailability")
	defer span.End()

	item, err := s.repo.SetMenuItemAvailability(ctx, menuItemID, available)
	if err != nil {
		return nil, lookup(err, apperr.ErrMenuItemNotFound)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateMenu(ctx, item.RestaurantID); err != nil {
			s.logger.Warn("Failed to invalidate menu cache",
				zap.String("restaurant_id", item.RestaurantID), zap.Error(err))
		}
	}

	s.logger.Info("Menu item availability changed",
		zap.String("menu_item_id", item.ID),
		zap.Bool("available", available))
	return item, nil
}

func (s *MenuService) cached(ctx context.Context, restaurantID string) (*Menu, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.GetMenu(ctx, restaurantID)
	if err != nil {
		s.logger.Warn("Menu cache read failed", zap.String("restaurant_id", restaurantID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var menu Menu
	if err := json.Unmarshal(data, &menu); err != nil {
		s.logger.Warn("Discarding corrupt cached menu", zap.String("restaurant_id", restaurantID), zap.Error(err))
		return nil, false
	}
	return &menu, true
}

func (s *MenuService) store(ctx context.Context, restaurantID string, menu *Menu) {
	if s.cache == nil || s.settings.MenuCacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(menu)
	if err != nil {
		return
	}
	if err := s.cache.SetMenu(ctx, restaurantID, data, s.settings.MenuCacheTTL); err != nil {
		s.logger.Warn("Menu cache write failed", zap.String("restaurant_id", restaurantID), zap.Error(err))
	}
}
