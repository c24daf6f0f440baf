package entity

import (
	"fmt"
	"strconv"
)

// Config carries parser options. Variants read only the keys they know.
type Config map[string]string

func (c Config) Get(key, fallback string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (c Config) Int64(key string) (int64, bool, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("config key %s: %w", key, err)
	}
	return n, true, nil
}
