package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/syncforge/syncforge/internal/db"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/secretstore"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeSecrets struct {
	values map[string]string
}

func (f *fakeSecrets) Get(_ context.Context, _ uint64, ref string) (string, error) {
	value, ok := f.values[ref]
	if !ok {
		return "", secretstore.ErrSecretNotFound
	}
	return value, nil
}

type fakeRepoFetcher struct {
	fields []string
	err    error
	calls  int
}

func (f *fakeRepoFetcher) FetchRepoFields(_ context.Context, _, _ string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

type fakeTableFetcher struct {
	fields []TableField
	err    error
	calls  int
}

func (f *fakeTableFetcher) FetchTableFields(_ context.Context, _ TableCredentials, _ string) ([]TableField, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeRepoFetcher, *fakeTableFetcher) {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	user := models.User{Email: "dev@example.com", Password: "hash"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	snConfig, _ := json.Marshal(map[string]string{
		"instance_url": "https://dev.service-now.com",
		"username":     "sync",
	})
	bindings := []models.Integration{
		{UserID: user.ID, Provider: models.ProviderGitHub, Label: "default", SecretRef: "local:gh"},
		{UserID: user.ID, Provider: models.ProviderServiceNow, Label: "default", SecretRef: "local:sn", Config: datatypes.JSON(snConfig)},
	}
	for i := range bindings {
		if errCreate := conn.Create(&bindings[i]).Error; errCreate != nil {
			t.Fatalf("create integration: %v", errCreate)
		}
	}

	secrets := &fakeSecrets{values: map[string]string{
		"local:gh": "ghp_token",
		"local:sn": "password",
	}}
	repoFetcher := &fakeRepoFetcher{
		fields: []string{"id", "name", "full_name", "description", "created_at", "updated_at", "html_url", "owner_login"},
	}
	tableFetcher := &fakeTableFetcher{
		fields: []TableField{
			{Name: "short_description", Required: true},
			{Name: "state", Required: true},
			{Name: "assigned_to"},
			{Name: "sys_created_on"},
		},
	}

	return NewService(conn, secrets, repoFetcher, tableFetcher), conn, repoFetcher, tableFetcher
}

func loadBinding(t *testing.T, conn *gorm.DB, provider string) models.Integration {
	t.Helper()
	var row models.Integration
	if errFind := conn.Where("provider = ?", provider).First(&row).Error; errFind != nil {
		t.Fatalf("load %s binding: %v", provider, errFind)
	}
	return row
}

func TestCreateMappingAndList(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	record, errCreate := svc.CreateMapping(ctx, CreateMappingInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Direction:  "bidirectional",
		FieldMapping: map[string]string{
			"short_description": "description",
		},
	})
	if errCreate != nil {
		t.Fatalf("create mapping: %v", errCreate)
	}
	if record.ID == 0 {
		t.Fatalf("expected persisted id")
	}
	if record.Label != "default" {
		t.Fatalf("expected default label, got %q", record.Label)
	}

	second, errSecond := svc.CreateMapping(ctx, CreateMappingInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Label:      "staging",
		Direction:  "repo_to_table",
	})
	if errSecond != nil {
		t.Fatalf("create second mapping: %v", errSecond)
	}

	records, errList := svc.ListMappings(ctx, 1)
	if errList != nil {
		t.Fatalf("list mappings: %v", errList)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(records))
	}
	if records[0].ID != second.ID {
		t.Fatalf("expected newest first, got id %d", records[0].ID)
	}
	if records[1].FieldMapping["short_description"] != "description" {
		t.Fatalf("field mapping not round-tripped: %v", records[1].FieldMapping)
	}
}

func TestCreateMappingDuplicateConflicts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	input := CreateMappingInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Direction:  "bidirectional",
	}
	if _, errFirst := svc.CreateMapping(ctx, input); errFirst != nil {
		t.Fatalf("create mapping: %v", errFirst)
	}
	if _, errDup := svc.CreateMapping(ctx, input); !errors.Is(errDup, ErrMappingExists) {
		t.Fatalf("expected ErrMappingExists, got %v", errDup)
	}
}

func TestCreateMappingRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateMapping(ctx, CreateMappingInput{
		UserID: 1, Repository: "acme/widgets", Table: "incident", Direction: "sideways",
	}); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}

	if _, err := svc.CreateMapping(ctx, CreateMappingInput{
		UserID: 1, Repository: "widgets", Table: "incident", Direction: "bidirectional",
	}); !errors.Is(err, ErrInvalidRepositoryIdentifier) {
		t.Fatalf("expected ErrInvalidRepositoryIdentifier, got %v", err)
	}

	var validationErr *ValidationError
	_, err := svc.CreateMapping(ctx, CreateMappingInput{
		UserID: 1, Repository: "acme/widgets", Table: "incident", Direction: "bidirectional",
		FieldMapping: map[string]string{"a": "x", "b": "x"},
	})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateMappingOK(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	ctx := context.Background()

	result, errValidate := svc.ValidateMapping(ctx, ValidateInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Direction:  "table_to_repo",
		FieldMapping: map[string]string{
			"short_description": "description",
			"assigned_to":       "owner_login",
		},
	})
	if errValidate != nil {
		t.Fatalf("validate mapping: %v", errValidate)
	}
	if !result.OK {
		t.Fatalf("expected ok result, got %+v", result)
	}
	if len(result.MissingTableFields) != 0 || len(result.MissingRepoFields) != 0 {
		t.Fatalf("expected no missing fields, got %+v", result)
	}
	if len(result.SuggestedMapping) == 0 {
		t.Fatalf("expected suggestion attached")
	}

	for _, provider := range []string{models.ProviderGitHub, models.ProviderServiceNow} {
		binding := loadBinding(t, conn, provider)
		if binding.LastTestedAt == nil || binding.LastTestOK == nil || !*binding.LastTestOK {
			t.Fatalf("expected %s binding marked ok, got %+v", provider, binding)
		}
		if binding.LastTestMessage != "OK" {
			t.Fatalf("expected OK message, got %q", binding.LastTestMessage)
		}
	}
}

func TestValidateMappingReportsMissingFields(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	result, errValidate := svc.ValidateMapping(ctx, ValidateInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Direction:  "table_to_repo",
		FieldMapping: map[string]string{
			"zz_custom":         "nonexistent",
			"aa_custom":         "also_missing",
			"short_description": "description",
		},
	})
	if errValidate != nil {
		t.Fatalf("validate mapping: %v", errValidate)
	}
	if result.OK {
		t.Fatalf("expected not ok")
	}
	if len(result.MissingTableFields) != 2 || result.MissingTableFields[0] != "aa_custom" || result.MissingTableFields[1] != "zz_custom" {
		t.Fatalf("expected sorted missing table fields, got %v", result.MissingTableFields)
	}
	if len(result.MissingRepoFields) != 2 || result.MissingRepoFields[0] != "also_missing" || result.MissingRepoFields[1] != "nonexistent" {
		t.Fatalf("expected missing repo fields in key order, got %v", result.MissingRepoFields)
	}
}

func TestValidateMappingWarnsOnUnmappedRequired(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	input := ValidateInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Direction:  "bidirectional",
		FieldMapping: map[string]string{
			"short_description": "description",
		},
	}

	result, errValidate := svc.ValidateMapping(ctx, input)
	if errValidate != nil {
		t.Fatalf("validate mapping: %v", errValidate)
	}
	// state is required and unmapped; the result stays ok because warnings
	// never fail validation.
	if !result.OK {
		t.Fatalf("expected ok despite warning, got %+v", result)
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "required table fields not mapped: state") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected required-coverage warning, got %v", result.Warnings)
	}

	// table_to_repo never writes into the table, so no coverage warning.
	input.Direction = "table_to_repo"
	result, errValidate = svc.ValidateMapping(ctx, input)
	if errValidate != nil {
		t.Fatalf("validate mapping: %v", errValidate)
	}
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "required table fields not mapped") {
			t.Fatalf("unexpected coverage warning for table_to_repo: %v", result.Warnings)
		}
	}
}

func TestValidateMappingStructuralFailureSkipsFetch(t *testing.T) {
	svc, _, repoFetcher, tableFetcher := newTestService(t)
	ctx := context.Background()

	_, err := svc.ValidateMapping(ctx, ValidateInput{
		UserID:       1,
		Repository:   "widgets",
		Table:        "incident",
		Direction:    "bidirectional",
		FieldMapping: map[string]string{"short_description": "description"},
	})
	if !errors.Is(err, ErrInvalidRepositoryIdentifier) {
		t.Fatalf("expected ErrInvalidRepositoryIdentifier, got %v", err)
	}
	if repoFetcher.calls != 0 || tableFetcher.calls != 0 {
		t.Fatalf("expected no remote calls, got repo=%d table=%d", repoFetcher.calls, tableFetcher.calls)
	}
}

func TestValidateMappingRemoteFailureMarksBothBindings(t *testing.T) {
	svc, conn, repoFetcher, tableFetcher := newTestService(t)
	ctx := context.Background()

	repoFetcher.err = errors.New(strings.Repeat("x", 600))

	_, err := svc.ValidateMapping(ctx, ValidateInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Direction:  "bidirectional",
	})
	var fetchErr *RemoteFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected RemoteFetchError, got %v", err)
	}
	if fetchErr.Provider != models.ProviderGitHub {
		t.Fatalf("expected github provider, got %s", fetchErr.Provider)
	}
	if tableFetcher.calls != 0 {
		t.Fatalf("expected table fetch skipped after repo failure")
	}

	for _, provider := range []string{models.ProviderGitHub, models.ProviderServiceNow} {
		binding := loadBinding(t, conn, provider)
		if binding.LastTestOK == nil || *binding.LastTestOK {
			t.Fatalf("expected %s binding marked failed", provider)
		}
		if len(binding.LastTestMessage) != 500 {
			t.Fatalf("expected message truncated to 500, got %d", len(binding.LastTestMessage))
		}
	}
}

func TestValidateMappingMissingBinding(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	ctx := context.Background()

	if errDelete := conn.Where("provider = ?", models.ProviderServiceNow).
		Delete(&models.Integration{}).Error; errDelete != nil {
		t.Fatalf("delete binding: %v", errDelete)
	}

	_, err := svc.ValidateMapping(ctx, ValidateInput{
		UserID: 1, Repository: "acme/widgets", Table: "incident", Direction: "bidirectional",
	})
	if !errors.Is(err, ErrCredentialNotConfigured) {
		t.Fatalf("expected ErrCredentialNotConfigured, got %v", err)
	}
}

func TestValidateMappingIncompleteConfig(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	ctx := context.Background()

	partial, _ := json.Marshal(map[string]string{"instance_url": "https://dev.service-now.com"})
	if errUpdate := conn.Model(&models.Integration{}).
		Where("provider = ?", models.ProviderServiceNow).
		Update("config", datatypes.JSON(partial)).Error; errUpdate != nil {
		t.Fatalf("update config: %v", errUpdate)
	}

	_, err := svc.ValidateMapping(ctx, ValidateInput{
		UserID: 1, Repository: "acme/widgets", Table: "incident", Direction: "bidirectional",
	})
	if !errors.Is(err, ErrCredentialIncomplete) {
		t.Fatalf("expected ErrCredentialIncomplete, got %v", err)
	}
}

func TestValidateMappingMissingSecret(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	ctx := context.Background()

	if errUpdate := conn.Model(&models.Integration{}).
		Where("provider = ?", models.ProviderGitHub).
		Update("secret_ref", "local:gone").Error; errUpdate != nil {
		t.Fatalf("update secret ref: %v", errUpdate)
	}

	_, err := svc.ValidateMapping(ctx, ValidateInput{
		UserID: 1, Repository: "acme/widgets", Table: "incident", Direction: "bidirectional",
	})
	if !errors.Is(err, secretstore.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}

	for _, provider := range []string{models.ProviderGitHub, models.ProviderServiceNow} {
		binding := loadBinding(t, conn, provider)
		if binding.LastTestOK == nil || *binding.LastTestOK {
			t.Fatalf("expected %s binding marked failed after secret lookup, got %+v", provider, binding)
		}
		if binding.LastTestMessage == "" {
			t.Fatalf("expected failure message on %s binding", provider)
		}
	}
}

func TestAutoMap(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	result, errAuto := svc.AutoMap(ctx, AutoMapInput{
		UserID:     1,
		Repository: "acme/widgets",
		Table:      "incident",
		Direction:  "bidirectional",
	})
	if errAuto != nil {
		t.Fatalf("auto map: %v", errAuto)
	}
	if !result.OK {
		t.Fatalf("expected ok result")
	}
	want := map[string]string{
		"short_description": "description",
		"assigned_to":       "owner_login",
		"sys_created_on":    "created_at",
	}
	for key, value := range want {
		if result.Mapping[key] != value {
			t.Fatalf("expected %s -> %s, got %q", key, value, result.Mapping[key])
		}
	}
	if _, ok := result.Mapping["state"]; ok {
		t.Fatalf("expected state unmatched, got %v", result.Mapping)
	}
	if len(result.Notes) != 3 {
		t.Fatalf("expected 3 notes, got %v", result.Notes)
	}
}
