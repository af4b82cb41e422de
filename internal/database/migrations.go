package database

import (
	"database/sql"
	"log"
)

// createStatements build every table the system uses. They are all
// IF NOT EXISTS so running them on every boot is safe.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		telegram_id BIGINT NOT NULL UNIQUE,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NULL,
		username VARCHAR(255) NULL,
		language_code VARCHAR(16) NULL,
		phone VARCHAR(32) NULL,
		is_premium BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS shops (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		address VARCHAR(512) NOT NULL DEFAULT '',
		city VARCHAR(255) NULL,
		phone VARCHAR(32) NULL,
		email VARCHAR(255) NULL,
		photo_url VARCHAR(512) NULL,
		latitude DOUBLE NULL,
		longitude DOUBLE NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		average_rating DECIMAL(3,2) NOT NULL DEFAULT 0,
		total_reviews INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS shop_applications (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		telegram_id BIGINT NOT NULL,
		shop_name VARCHAR(255) NOT NULL,
		photo_file_id VARCHAR(255) NULL,
		photo_path VARCHAR(512) NULL,
		description TEXT NOT NULL,
		address VARCHAR(512) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		owner_name VARCHAR(255) NOT NULL,
		owner_phone VARCHAR(32) NOT NULL,
		owner_username VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		group_message_id INT NULL,
		shop_id BIGINT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS subscription_plans (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		duration_days INT NOT NULL,
		max_products INT NOT NULL DEFAULT 10,
		features JSON NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		shop_id BIGINT NOT NULL,
		plan_id BIGINT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		external_payment_id VARCHAR(255) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (shop_id) REFERENCES shops(id) ON DELETE CASCADE,
		FOREIGN KEY (plan_id) REFERENCES subscription_plans(id)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL UNIQUE,
		icon VARCHAR(512) NULL,
		parent_id BIGINT NULL,
		sort_order INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		FOREIGN KEY (parent_id) REFERENCES categories(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		shop_id BIGINT NOT NULL,
		category_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		discount_price DECIMAL(10,2) NULL,
		discount_percent INT NULL,
		quantity INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_trending BOOLEAN NOT NULL DEFAULT FALSE,
		views_count INT NOT NULL DEFAULT 0,
		sales_count INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (shop_id) REFERENCES shops(id) ON DELETE CASCADE,
		FOREIGN KEY (category_id) REFERENCES categories(id)
	)`,
	`CREATE TABLE IF NOT EXISTS product_media (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		media_type VARCHAR(16) NOT NULL DEFAULT 'photo',
		url VARCHAR(512) NOT NULL,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		sort_order INT NOT NULL DEFAULT 0,
		FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_cart_user_product (user_id, product_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_fav_user_product (user_id, product_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL UNIQUE,
		user_id BIGINT NOT NULL,
		shop_id BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		subtotal DECIMAL(10,2) NOT NULL DEFAULT 0,
		discount DECIMAL(10,2) NOT NULL DEFAULT 0,
		promo_code VARCHAR(64) NULL,
		promo_discount DECIMAL(10,2) NOT NULL DEFAULT 0,
		delivery_fee DECIMAL(10,2) NOT NULL DEFAULT 0,
		total DECIMAL(10,2) NOT NULL DEFAULT 0,
		delivery_address VARCHAR(512) NULL,
		delivery_type VARCHAR(16) NOT NULL DEFAULT 'delivery',
		delivery_date VARCHAR(32) NULL,
		delivery_time VARCHAR(32) NULL,
		recipient_name VARCHAR(255) NOT NULL DEFAULT '',
		recipient_phone VARCHAR(32) NOT NULL DEFAULT '',
		comment TEXT NULL,
		payment_method VARCHAR(32) NOT NULL DEFAULT 'cash',
		payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (shop_id) REFERENCES shops(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		product_id BIGINT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		discount_price DECIMAL(10,2) NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
		FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shop_reviews (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		shop_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		order_id BIGINT NULL,
		rating INT NOT NULL,
		comment TEXT NULL,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_review_shop_user (shop_id, user_id),
		FOREIGN KEY (shop_id) REFERENCES shops(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS promos (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(64) NOT NULL UNIQUE,
		promo_type VARCHAR(16) NOT NULL,
		value DECIMAL(10,2) NOT NULL DEFAULT 0,
		min_order_amount DECIMAL(10,2) NULL,
		valid_from DATE NULL,
		valid_until DATE NULL,
		shop_id BIGINT NULL,
		use_once BOOLEAN NOT NULL DEFAULT FALSE,
		first_order_only BOOLEAN NOT NULL DEFAULT FALSE,
		max_uses INT NULL,
		usage_count INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS banners (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		emoji VARCHAR(16) NULL,
		description TEXT NULL,
		image_url VARCHAR(512) NULL,
		link_type VARCHAR(16) NOT NULL DEFAULT 'none',
		link_value VARCHAR(512) NULL,
		display_order INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		event_date DATE NOT NULL,
		event_description VARCHAR(512) NOT NULL,
		is_sent BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS shop_channels (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		shop_id BIGINT NOT NULL UNIQUE,
		channel_id BIGINT NOT NULL,
		channel_handle VARCHAR(255) NOT NULL DEFAULT '',
		FOREIGN KEY (shop_id) REFERENCES shops(id) ON DELETE CASCADE
	)`,
}

// alterStatements add columns introduced after the first schema version.
// MySQL has no ADD COLUMN IF NOT EXISTS, so each step is attempted and a
// duplicate-column error is logged and skipped.
var alterStatements = []string{
	`ALTER TABLE promos ADD COLUMN discount_type VARCHAR(16) NULL`,
	`ALTER TABLE promos ADD COLUMN discount_value DECIMAL(10,2) NULL`,
	`ALTER TABLE promos ADD COLUMN max_uses INT NULL`,
	`ALTER TABLE users ADD COLUMN is_premium BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE shops ADD COLUMN latitude DOUBLE NULL`,
	`ALTER TABLE shops ADD COLUMN longitude DOUBLE NULL`,
	`ALTER TABLE products ADD COLUMN discount_percent INT NULL`,
	`ALTER TABLE subscriptions ADD COLUMN external_payment_id VARCHAR(255) NULL`,
	`ALTER TABLE shop_applications ADD COLUMN photo_file_id VARCHAR(255) NULL`,
	`ALTER TABLE orders ADD COLUMN promo_discount DECIMAL(10,2) NOT NULL DEFAULT 0`,
}

// Migrate brings the schema up to date. It runs once at process startup,
// before the expiry sweep and before the server accepts connections.
// A failing step is logged and skipped so one bad ALTER cannot take the
// whole process down.
func Migrate(db *sql.DB) error {
	for _, stmt := range createStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	for _, stmt := range alterStatements {
		if _, err := db.Exec(stmt); err != nil {
			log.Printf("Migration step skipped: %v", err)
		}
	}

	// Backfill legacy promo columns from the modern ones.
	if _, err := db.Exec(
		`UPDATE promos SET discount_type = promo_type, discount_value = value
		 WHERE discount_type IS NULL`,
	); err != nil {
		log.Printf("Promo legacy backfill skipped: %v", err)
	}

	// Recompute denormalized shop ratings from review rows.
	if _, err := db.Exec(
		`UPDATE shops s SET
			s.average_rating = COALESCE((SELECT AVG(r.rating) FROM shop_reviews r WHERE r.shop_id = s.id), 0),
			s.total_reviews  = (SELECT COUNT(*) FROM shop_reviews r WHERE r.shop_id = s.id)`,
	); err != nil {
		log.Printf("Shop rating recompute skipped: %v", err)
	}

	log.Println("Database schema is up to date")
	return nil
}
