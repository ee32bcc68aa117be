package report

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	teachersSheet = "Guru"
	summarySheet  = "Ringkasan"
)

var teacherHeaders = []interface{}{"Nama", "Email", "NIP", "Jumlah Kursus"}

// ExportTeachers writes the report as an .xlsx workbook.
func ExportTeachers(w io.Writer, report TeacherReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", teachersSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	if err := f.SetSheetRow(teachersSheet, "A1", &teacherHeaders); err != nil {
		return errors.Wrap(err, "writing headers")
	}
	for i, t := range report.Teachers {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "locating row")
		}
		row := []interface{}{t.FullName, t.Email, t.IdentityNumber, t.Courses}
		if err = f.SetSheetRow(teachersSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing teacher %s", t.ID)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.Wrap(err, "adding summary sheet")
	}
	summary := [][]interface{}{
		{"Total Guru", report.TotalTeachers},
		{"Total Kursus", report.TotalCourses},
		{"Rata-rata Kursus", report.AverageCourses},
	}
	for i := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "locating row")
		}
		if err = f.SetSheetRow(summarySheet, cell, &summary[i]); err != nil {
			return errors.Wrap(err, "writing summary")
		}
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}

// ReadTeachers reads back the teacher rows of a workbook written by ExportTeachers.
func ReadTeachers(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(teachersSheet)
	return rows, errors.Wrap(err, "reading rows")
}
