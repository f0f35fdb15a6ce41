// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the one-shot feeder-balance recompute job, run on a
// schedule (cron, k8s CronJob) rather than continuously. Grounded on
// original_source's bin/feeder_balance.rs main function.
package main

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestanalytics"
	"gridflow/internal/ingestconfig"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := ingestconfig.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := sql.Open("postgres", cfg.QuestDB.URI)
	if err != nil {
		log.WithError(err).Fatal("failed to open QuestDB pgwire connection")
	}
	db.SetMaxOpenConns(cfg.QuestDB.MaxConnections)
	defer db.Close()

	if err := ingestanalytics.Recompute(context.Background(), db, log.WithField("job", "feeder_balance")); err != nil {
		log.WithError(err).Fatal("feeder_energy_balance recompute failed")
	}
}
