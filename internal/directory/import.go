package directory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

// MaxImportRows caps a single upload.
const MaxImportRows = 5000

// importColumns maps accepted header spellings to fields.
var importColumns = map[string]string{
	"first_name":    "first_name",
	"firstname":     "first_name",
	"first name":    "first_name",
	"last_name":     "last_name",
	"lastname":      "last_name",
	"last name":     "last_name",
	"surname":       "last_name",
	"email":         "email",
	"e-mail":        "email",
	"phone":         "phone",
	"mobile":        "mobile",
	"department":    "department",
	"job_title":     "job_title",
	"title":         "job_title",
	"job title":     "job_title",
	"location":      "location",
	"office":        "location",
	"photo_url":     "photo_url",
	"manager_email": "manager_email",
	"manager":       "manager_email",
	"active":        "active",
}

type importRow struct {
	line         int
	req          EmployeeRequest
	managerEmail string
}

// Import upserts employees from CSV keyed by email. Rows that fail
// validation are reported and skipped; the rest are applied. Managers are
// resolved by email after all rows are written, so a manager may appear
// later in the file.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	rows, report, err := parseImport(r)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		ids := make(map[string]uuid.UUID, len(rows))
		var applied []importRow
		for _, row := range rows {
			id, created, err := s.upsert(ctx, &row.req)
			if err != nil {
				if dErrors.CodeOf(err) == dErrors.CodeInternal {
					return err
				}
				report.addError(row.line, row.req.Email, dErrors.MessageOf(err))
				continue
			}
			ids[row.req.Email] = id
			applied = append(applied, row)
			if created {
				report.Created++
			} else {
				report.Updated++
			}
		}
		for _, row := range applied {
			if row.managerEmail == "" {
				continue
			}
			if err := s.linkManager(ctx, ids[row.req.Email], row.managerEmail, ids); err != nil {
				if dErrors.CodeOf(err) == dErrors.CodeInternal {
					return err
				}
				report.Errors = append(report.Errors, RowError{Line: row.line, Email: row.req.Email, Message: dErrors.MessageOf(err)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "directory import failed")
	}

	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventDirectoryImported, "employee", "",
		"created", strconv.Itoa(report.Created),
		"updated", strconv.Itoa(report.Updated),
		"errors", strconv.Itoa(len(report.Errors)),
	)
	return report, nil
}

func (r *ImportReport) addError(line int, email, msg string) {
	r.Skipped++
	r.Errors = append(r.Errors, RowError{Line: line, Email: email, Message: msg})
}

func parseImport(r io.Reader) ([]importRow, *ImportReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "csv file is empty")
		}
		return nil, nil, dErrors.New(dErrors.CodeValidation, "csv header could not be read")
	}
	index := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := importColumns[name]; ok {
			index[field] = i
		}
	}
	if _, ok := index["email"]; !ok {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "csv header must include an email column")
	}

	report := &ImportReport{Errors: []RowError{}}
	seen := make(map[string]int)
	var rows []importRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			report.addError(line, "", "malformed csv row")
			continue
		}
		if isBlank(record) {
			continue
		}
		if len(rows)+report.Skipped >= MaxImportRows {
			return nil, nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("csv exceeds %d rows", MaxImportRows))
		}
		row, rowErr := toImportRow(line, record, index)
		if rowErr != "" {
			report.addError(line, row.req.Email, rowErr)
			continue
		}
		if first, dup := seen[row.req.Email]; dup {
			report.addError(line, row.req.Email, fmt.Sprintf("duplicate of line %d", first))
			continue
		}
		seen[row.req.Email] = line
		rows = append(rows, row)
	}
	return rows, report, nil
}

func toImportRow(line int, record []string, index map[string]int) (importRow, string) {
	get := func(field string) string {
		i, ok := index[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	row := importRow{
		line: line,
		req: EmployeeRequest{
			FirstName:  get("first_name"),
			LastName:   get("last_name"),
			Email:      get("email"),
			Phone:      get("phone"),
			Mobile:     get("mobile"),
			Department: get("department"),
			JobTitle:   get("job_title"),
			Location:   get("location"),
			PhotoURL:   get("photo_url"),
		},
		managerEmail: strings.ToLower(get("manager_email")),
	}
	if raw := get("active"); raw != "" {
		active, ok := parseBool(raw)
		if !ok {
			return row, "active must be true or false"
		}
		row.req.Active = &active
	}
	row.req.Normalize()
	if err := validation.Struct(&row.req); err != nil {
		return row, dErrors.MessageOf(err)
	}
	return row, ""
}

// upsert creates or updates by email, reporting whether a row was created.
// Manager links are left to linkManager.
func (s *Service) upsert(ctx context.Context, req *EmployeeRequest) (uuid.UUID, bool, error) {
	now := requestcontext.Now(ctx)
	existing, err := s.store.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		req.ManagerID = existing.ManagerID
		apply(existing, req)
		existing.UpdatedAt = now
		if err := s.store.Update(ctx, existing); err != nil {
			return uuid.Nil, false, translate(err)
		}
		return existing.ID, false, nil
	case errors.Is(err, sentinel.ErrNotFound):
		e := &Employee{ID: uuid.New(), Active: true, CreatedAt: now, UpdatedAt: now}
		apply(e, req)
		if err := s.store.Create(ctx, e); err != nil {
			return uuid.Nil, false, translate(err)
		}
		return e.ID, true, nil
	default:
		return uuid.Nil, false, translate(err)
	}
}

func (s *Service) linkManager(ctx context.Context, id uuid.UUID, managerEmail string, imported map[string]uuid.UUID) error {
	managerID, ok := imported[managerEmail]
	if !ok {
		m, err := s.store.FindByEmail(ctx, managerEmail)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "manager "+managerEmail+" not found")
			}
			return translate(err)
		}
		managerID = m.ID
	}
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return translate(err)
	}
	e.ManagerID = &managerID
	if err := s.checkManager(ctx, e); err != nil {
		return err
	}
	if err := s.store.Update(ctx, e); err != nil {
		return translate(err)
	}
	return nil
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "active":
		return true, true
	case "0", "false", "no", "n", "inactive":
		return false, true
	}
	return false, false
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
