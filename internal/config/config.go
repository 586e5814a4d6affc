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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"group-shipment-go/internal/models"
)

// Load reads the service configuration from the environment and the
// business policy from POLICY_FILE.
func Load() (*models.Config, error) {
	durations := map[string]time.Duration{
		"DB_CONN_MAX_LIFETIME":     5 * time.Minute,
		"DB_CONN_MAX_IDLE_TIME":    30 * time.Second,
		"DB_PING_TIMEOUT":          5 * time.Second,
		"DB_BUSY_TIMEOUT":          10 * time.Second,
		"HTTP_READ_TIMEOUT":        15 * time.Second,
		"HTTP_WRITE_TIMEOUT":       15 * time.Second,
		"HTTP_SHUTDOWN_TIMEOUT":    10 * time.Second,
		"SWEEP_DEADLINE_INTERVAL":  2 * time.Minute,
		"SWEEP_URGENCY_INTERVAL":   15 * time.Minute,
		"SWEEP_CLEARANCE_INTERVAL": time.Hour,
		"PAYMENT_TIMEOUT":          30 * time.Second,
	}
	d := make(map[string]time.Duration, len(durations))
	for key, defaultValue := range durations {
		value, err := getEnvDuration(key, defaultValue)
		if err != nil {
			return nil, err
		}
		d[key] = value
	}

	policyFile := getEnvString("POLICY_FILE", "policy.yaml")
	policy, err := LoadPolicy(policyFile, os.Getenv("POLICY_FILE") != "")
	if err != nil {
		return nil, err
	}

	redisAddr := getEnvString("REDIS_ADDR", "")

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "group-shipment.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: d["DB_CONN_MAX_LIFETIME"],
			ConnMaxIdleTime: d["DB_CONN_MAX_IDLE_TIME"],
			PingTimeout:     d["DB_PING_TIMEOUT"],
			BusyTimeout:     d["DB_BUSY_TIMEOUT"],
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			ReadTimeout:     d["HTTP_READ_TIMEOUT"],
			WriteTimeout:    d["HTTP_WRITE_TIMEOUT"],
			ShutdownTimeout: d["HTTP_SHUTDOWN_TIMEOUT"],
			AuthUser:        getEnvString("ADMIN_USER", ""),
			AuthPass:        getEnvString("ADMIN_PASS", ""),
		},
		Sweeps: models.SweepConfig{
			DeadlineInterval:  d["SWEEP_DEADLINE_INTERVAL"],
			UrgencyInterval:   d["SWEEP_URGENCY_INTERVAL"],
			ClearanceInterval: d["SWEEP_CLEARANCE_INTERVAL"],
			BatchSize:         getEnvInt("SWEEP_BATCH_SIZE", 100),
		},
		Redis: models.RedisConfig{
			Addr:     redisAddr,
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", redisAddr != ""),
		},
		Notification: models.NotificationConfig{
			SNSTopicArn:      getEnvString("SNS_TOPIC_ARN", ""),
			AWSRegion:        getEnvString("AWS_REGION", "ap-south-1"),
			TwilioAccountSid: getEnvString("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnvString("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber: getEnvString("TWILIO_FROM_NUMBER", ""),
		},
		Payment: models.PaymentConfig{
			RefundURL: getEnvString("PAYMENT_REFUND_URL", ""),
			APIKey:    getEnvString("PAYMENT_API_KEY", ""),
			Timeout:   d["PAYMENT_TIMEOUT"],
		},
		Formance: models.FormanceConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "group-shipment"),
			Asset:        getEnvString("FORMANCE_ASSET", "INR"),
		},
		PolicyFile: policyFile,
		Policy:     policy,
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
