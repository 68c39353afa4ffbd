package clients

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

const csvBufferSize = 32 * 1024

var exportHeader = []string{
	"id", "kind", "name", "tax_id", "phone", "email", "address", "city", "region", "website",
	"status", "sector", "last_contact_at", "primary_contact", "primary_contact_position",
	"primary_contact_phone", "primary_contact_email", "created_at",
}

// writeExportCSV streams rows as CRLF-terminated CSV with a header line.
func writeExportCSV(w io.Writer, rows []ExportRow) error {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true

	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(exportRecord(row)); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

func exportRecord(row ExportRow) []string {
	lastContact := ""
	if row.LastContactAt != nil {
		lastContact = row.LastContactAt.UTC().Format(time.RFC3339)
	}
	var contact Contact
	if row.PrimaryContact != nil {
		contact = *row.PrimaryContact
	}
	return []string{
		strconv.FormatInt(row.ID, 10), row.Kind, row.Name, row.TaxID, row.Phone, row.Email,
		row.Address, row.City, row.Region, row.Website, string(row.Status), row.Sector, lastContact,
		contact.Name, contact.Position, contact.Phone, contact.Email,
		row.CreatedAt.UTC().Format(time.RFC3339),
	}
}
