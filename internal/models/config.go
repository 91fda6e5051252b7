/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Ledger     LedgerConfig
	Reconciler ReconcilerConfig
	Formance   FormanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // "sqlite3" or "pgx"
	Path            string // sqlite file
	URL             string // postgres DSN
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// LedgerConfig holds engine and auditor settings
type LedgerConfig struct {
	ReconcileEpsilon   decimal.Decimal
	VerifyAfterApprove bool
	RatesFile          string
}

// ReconcilerConfig holds settings for the scheduled reconciliation runner
type ReconcilerConfig struct {
	Interval      time.Duration
	Workers       int
	LockTTL       time.Duration
	MetricsAddr   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// FormanceConfig holds the optional external ledger mirror settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether the mirror should be started.
func (c FormanceConfig) Enabled() bool {
	return c.StackURL != ""
}
