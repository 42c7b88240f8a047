// Package config provides database connection builders for tests,
// one per supported adapter, with shared pool tuning.
package config
