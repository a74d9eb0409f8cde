// Package importer loads the user roster from an uploaded CSV file.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/store"
)

// Required columns. telegram_id and telegram_username are checked
// per-row: at least one must be present.
var requiredColumns = []string{"full_name", "role", "rank"}

var allowedRanks = map[string]bool{
	// Enlistees and specialists.
	"REC": true, "PTE": true, "LCP": true, "CPL": true, "CFC": true,
	"3SG": true, "2SG": true, "1SG": true, "SSG": true, "MSG": true,
	// Warrant officers.
	"3WO": true, "2WO": true, "1WO": true, "MWO": true, "SWO": true,
	// Officers and officer cadets.
	"OCT": true, "2LT": true, "LTA": true, "CPT": true, "MAJ": true,
	"LTC": true, "COL": true,
	// Military experts.
	"ME1": true, "ME2": true, "ME3": true, "ME4": true, "ME5": true, "ME6": true,
}

// Result summarizes one import run.
type Result struct {
	Processed int
	Imported  int
	Errors    []string
}

// Importer writes roster rows into the store.
type Importer struct {
	store store.Store
}

// New creates an importer over the given store.
func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// Import parses CSV data and upserts every valid row. When clearFirst is
// set, all existing users and medical records are wiped before loading.
// Row-level problems are collected in the result; only structural
// problems (unreadable CSV, missing columns) fail the whole run.
func (im *Importer) Import(data []byte, clearFirst bool) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing required column %q", c)
		}
	}

	if clearFirst {
		if err := im.store.DeleteAllMedical(); err != nil {
			return nil, fmt.Errorf("failed to clear medical records: %w", err)
		}
		if err := im.store.DeleteAllUsers(); err != nil {
			return nil, fmt.Errorf("failed to clear users: %w", err)
		}
		slog.Info("Importer cleared existing data")
	}

	res := &Result{}
	for row := 2; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		res.Processed++

		user, err := parseRow(cols, record)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		if err := im.store.UpsertUser(*user); err != nil {
			slog.Error("Importer upsert failed", "error", err, "name", user.FullName)
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: could not save %s", row, user.FullName))
			continue
		}
		res.Imported++
	}

	slog.Info("Importer finished", "processed", res.Processed, "imported", res.Imported, "errors", len(res.Errors))
	return res, nil
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

func field(cols map[string]int, record []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseRow(cols map[string]int, record []string) (*models.User, error) {
	fullName := strings.ToUpper(field(cols, record, "full_name"))
	if fullName == "" {
		return nil, fmt.Errorf("full_name is empty")
	}

	rank := strings.ToUpper(field(cols, record, "rank"))
	if !allowedRanks[rank] {
		return nil, fmt.Errorf("unknown rank %q", rank)
	}

	role := strings.ToLower(field(cols, record, "role"))
	isAdmin := false
	switch role {
	case models.RoleCadet, models.RoleInstructor:
	case "admin":
		isAdmin = true
		base := strings.ToLower(field(cols, record, "base_role"))
		if base != models.RoleCadet && base != models.RoleInstructor {
			return nil, fmt.Errorf("admin row needs base_role cadet or instructor")
		}
		role = base
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	var platformID int64
	if raw := field(cols, record, "telegram_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad telegram_id %q", raw)
		}
		platformID = id
	}
	username := strings.TrimPrefix(field(cols, record, "telegram_username"), "@")
	if platformID == 0 && username == "" {
		return nil, fmt.Errorf("need telegram_id or telegram_username")
	}

	isActive := true
	if raw := strings.ToLower(field(cols, record, "is_active")); raw != "" {
		isActive = raw == "true" || raw == "1" || raw == "yes"
	}

	return &models.User{
		PlatformID: platformID,
		Username:   username,
		FullName:   fullName,
		Rank:       rank,
		Role:       role,
		IsAdmin:    isAdmin,
		IsActive:   isActive,
	}, nil
}
