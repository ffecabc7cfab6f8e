package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	coredatabase "github.com/m3rciful/shopbot/core/database"
	corecmd "github.com/m3rciful/shopbot/core/cmd"
)

// ShopConfig holds storefront-specific knobs.
type ShopConfig struct {
	// NotifyChatID receives purchase notices; falls back to the admin id.
	NotifyChatID         int64  `yaml:"notify_chat_id" envconfig:"SHOP_NOTIFY_CHAT_ID"`
	CategoriesPerPage    int    `yaml:"categories_per_page" envconfig:"SHOP_CATEGORIES_PER_PAGE"`
	SubcategoriesPerPage int    `yaml:"subcategories_per_page" envconfig:"SHOP_SUBCATEGORIES_PER_PAGE"`
	// TextsFile optionally overrides the embedded message templates.
	TextsFile string `yaml:"texts_file" envconfig:"SHOP_TEXTS_FILE"`
}

// Config is the full application configuration: the reusable core plus
// the database and storefront sections.
type Config struct {
	Core     coreconfig.Config   `yaml:"core"`
	Database coredatabase.Config `yaml:"database"`
	Shop     ShopConfig          `yaml:"shop"`
}

var _ corecmd.ConfigCarrier = (*Config)(nil)

// CoreConfig exposes the embedded core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads the YAML file, applies environment overrides and
// validates the result.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("app: parse config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("app: process env: %w", err)
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if cfg.Shop.NotifyChatID == 0 {
		cfg.Shop.NotifyChatID = cfg.Core.Telegram.AdminID
	}
	return &cfg, nil
}
