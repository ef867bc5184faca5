package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the MySQL-backed Store implementation.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(cfg *config.MySQLConfig) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.Discount{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.PaymentDetails{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Transact(ctx context.Context, fn func(Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (s *GormStore) ProductByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Preload("Discount").First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *GormStore) SaveProduct(ctx context.Context, p *models.Product) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) CartItems(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).
		Preload("Product").Preload("Product.Discount").
		Where("user_id = ?", userID).
		Order("product_id").
		Find(&items).Error
	return items, err
}

func (s *GormStore) PutCartItem(ctx context.Context, userID, productID uint, quantity int) error {
	item := models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&item).Error
}

func (s *GormStore) RemoveCartItem(ctx context.Context, userID, productID uint) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) OrderByOwner(ctx context.Context, ownerID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", orderID, ownerID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) OrdersByOwner(ctx context.Context, ownerID uint, offset, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}

func (s *GormStore) OrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("order_id = ?", orderID).
		Find(&items).Error
	return items, err
}

func (s *GormStore) OrderByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("payment_intent_id = ?", intentID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) HasSuccessfulPayment(ctx context.Context, orderID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentSuccess).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) PaymentDetailsByUser(ctx context.Context, userID uint) (*models.PaymentDetails, error) {
	var details models.PaymentDetails
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&details).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &details, nil
}

func (s *GormStore) SavePaymentDetails(ctx context.Context, d *models.PaymentDetails) error {
	return s.db.WithContext(ctx).Save(d).Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormTx implements Tx on top of a transaction-scoped *gorm.DB.
type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockProducts(ctx context.Context, ids []uint) (map[uint]*models.Product, error) {
	sorted := make([]uint, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var products []models.Product
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Discount").
		Where("id IN ?", sorted).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	locked := make(map[uint]*models.Product, len(products))
	for i := range products {
		locked[products[i].ID] = &products[i]
	}
	return locked, nil
}

func (t *gormTx) SaveProductStock(ctx context.Context, productID uint, stock int) error {
	return t.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", stock).Error
}

func (t *gormTx) CreateOrder(ctx context.Context, o *models.Order) error {
	return t.db.WithContext(ctx).Create(o).Error
}

func (t *gormTx) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return t.db.WithContext(ctx).Create(&items).Error
}

func (t *gormTx) SetOrderPaymentRef(ctx context.Context, orderID uint, intentID, clientSecret string) error {
	return t.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_intent_id": intentID,
			"client_secret":     clientSecret,
		}).Error
}

func (t *gormTx) UpdateOrderState(ctx context.Context, orderID uint, state models.OrderState) error {
	return t.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("state", state).Error
}

func (t *gormTx) OrderForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (t *gormTx) OrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := t.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error
	return items, err
}

func (t *gormTx) CreatePayment(ctx context.Context, p *models.Payment) error {
	return t.db.WithContext(ctx).Create(p).Error
}

func (t *gormTx) ClearCart(ctx context.Context, userID uint) error {
	return t.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}

func (t *gormTx) PruneCartItems(ctx context.Context) (int64, error) {
	res := t.db.WithContext(ctx).Exec(
		"DELETE cart_items FROM cart_items " +
			"JOIN products ON products.id = cart_items.product_id " +
			"WHERE cart_items.quantity > products.stock")
	return res.RowsAffected, res.Error
}
