// Package main audits a committed turn: it reads the turn's event journal
// and re-derives every dice roll from the recorded seeds, verifying that the
// stored results reproduce exactly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"

	"github.com/joho/godotenv"

	"github.com/louisbranch/sceneforge/internal/platform/config"
	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/mechanics"
	"github.com/louisbranch/sceneforge/internal/sim/storage/sqlite"
)

type replayConfig struct {
	DBPath string `env:"SCENEFORGE_DB_PATH" envDefault:"sceneforge.db"`
}

type recordedRoll struct {
	MoveID     string `json:"move_id"`
	Ordinal    int    `json:"ordinal"`
	Expression string `json:"expression"`
	Rolls      []int  `json:"rolls"`
	Modifier   int    `json:"modifier"`
	Total      int    `json:"total"`
	Difficulty int    `json:"difficulty"`
	Success    bool   `json:"success"`
}

func main() {
	log.SetPrefix("[REPLAY] ")
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	var (
		sessionID string
		turnIndex int
	)
	flag.StringVar(&sessionID, "session", "", "session id")
	flag.IntVar(&turnIndex, "turn", 0, "turn index to replay")
	flag.Parse()
	if sessionID == "" || turnIndex < 1 {
		config.Exitf("usage: replay -session <id> -turn <index>")
	}

	var cfg replayConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		config.Exitf("open database %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	ctx := context.Background()
	events, err := store.ListTurnEvents(ctx, sessionID, turnIndex)
	if err != nil {
		config.Exitf("list events: %v", err)
	}
	if len(events) == 0 {
		config.Exitf("no events for session %s turn %d", sessionID, turnIndex)
	}

	userActionID := ""
	var dicePayload []byte
	for _, event := range events {
		fmt.Printf("%s  %-16s %s\n", event.Timestamp.Format("15:04:05.000"), event.Step, event.Type)
		switch event.Step {
		case domain.StepUserAction:
			userActionID = event.UserActionID
		case domain.StepDice:
			dicePayload = event.PayloadJSON
		}
	}
	if userActionID == "" {
		config.Exitf("turn %d has no user_action event", turnIndex)
	}
	if dicePayload == nil {
		log.Printf("turn %d rolled no dice; nothing to verify", turnIndex)
		return
	}

	var payload struct {
		Rolls []recordedRoll `json:"rolls"`
	}
	if err := json.Unmarshal(dicePayload, &payload); err != nil {
		config.Exitf("decode dice payload: %v", err)
	}

	mismatches := 0
	for _, recorded := range payload.Rolls {
		seed := mechanics.DeriveTurnSeed(sessionID, turnIndex, userActionID, recorded.Ordinal)
		roll, err := mechanics.RollDice("1d20", seed)
		if err != nil {
			config.Exitf("re-roll %s: %v", recorded.MoveID, err)
		}
		if !reflect.DeepEqual(roll.Rolls, recorded.Rolls) {
			mismatches++
			fmt.Printf("MISMATCH %s: recorded %v, derived %v\n", recorded.MoveID, recorded.Rolls, roll.Rolls)
			continue
		}
		total := roll.Total + recorded.Modifier
		fmt.Printf("ok %s: %s rolled %v%+d = %d vs DC %d (%v)\n",
			recorded.MoveID, recorded.Expression, recorded.Rolls, recorded.Modifier,
			total, recorded.Difficulty, recorded.Success)
	}
	if mismatches > 0 {
		config.Exitf("%d roll(s) failed to reproduce", mismatches)
	}
	log.Printf("turn %d: %d roll(s) reproduced exactly", turnIndex, len(payload.Rolls))
}
