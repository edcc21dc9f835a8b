package export

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/subineru/redmine-stakeholder/internal/models"
)

// SpreadsheetML (the XML dialect old Excel reads as .xls). A full xlsx
// writer is overkill for a ten-column listing; this mirrors the workbook
// shape the export has always produced.

type xlsWorkbook struct {
	XMLName   xml.Name     `xml:"Workbook"`
	Xmlns     string       `xml:"xmlns,attr"`
	XmlnsSS   string       `xml:"xmlns:ss,attr"`
	Styles    xlsStyles    `xml:"Styles"`
	Worksheet xlsWorksheet `xml:"Worksheet"`
}

type xlsStyles struct {
	Style xlsStyle `xml:"Style"`
}

type xlsStyle struct {
	ID       string       `xml:"ss:ID,attr"`
	Font     *xlsFont     `xml:"Font,omitempty"`
	Interior *xlsInterior `xml:"Interior,omitempty"`
}

type xlsFont struct {
	Bold string `xml:"ss:Bold,attr"`
}

type xlsInterior struct {
	Color   string `xml:"ss:Color,attr"`
	Pattern string `xml:"ss:Pattern,attr"`
}

type xlsWorksheet struct {
	Name  string   `xml:"ss:Name,attr"`
	Table xlsTable `xml:"Table"`
}

type xlsTable struct {
	Rows []xlsRow `xml:"Row"`
}

type xlsRow struct {
	StyleID string    `xml:"ss:StyleID,attr,omitempty"`
	Cells   []xlsCell `xml:"Cell"`
}

type xlsCell struct {
	Data xlsData `xml:"Data"`
}

type xlsData struct {
	Type  string `xml:"ss:Type,attr"`
	Value string `xml:",chardata"`
}

func stringCell(v string) xlsCell {
	return xlsCell{Data: xlsData{Type: "String", Value: v}}
}

func numberCell(v string) xlsCell {
	if v == "" {
		return stringCell("")
	}
	return xlsCell{Data: xlsData{Type: "Number", Value: v}}
}

// WriteXLS writes the stakeholder list as a single-sheet SpreadsheetML
// workbook with a bold header row.
func WriteXLS(w io.Writer, stakeholders []models.Stakeholder) error {
	header := xlsRow{StyleID: "header"}
	for _, h := range exportHeader {
		header.Cells = append(header.Cells, stringCell(h))
	}

	rows := []xlsRow{header}
	for i := range stakeholders {
		s := &stakeholders[i]
		rows = append(rows, xlsRow{Cells: []xlsCell{
			numberCell(strconv.Itoa(s.ProjectSequenceNumber)),
			stringCell(s.Name),
			stringCell(s.Title),
			stringCell(s.LocationTypeLabel()),
			stringCell(s.ProjectRole),
			numberCell(intCell(s.Power)),
			numberCell(intCell(s.Interest)),
			stringCell(s.PrimaryNeeds),
			stringCell(s.Expectations),
			stringCell(s.ParticipationDegreeLabel()),
		}})
	}

	wb := xlsWorkbook{
		Xmlns:   "urn:schemas-microsoft-com:office:spreadsheet",
		XmlnsSS: "urn:schemas-microsoft-com:office:spreadsheet",
		Styles: xlsStyles{Style: xlsStyle{
			ID:       "header",
			Font:     &xlsFont{Bold: "1"},
			Interior: &xlsInterior{Color: "#CCE5FF", Pattern: "Solid"},
		}},
		Worksheet: xlsWorksheet{
			Name:  "Stakeholders",
			Table: xlsTable{Rows: rows},
		},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(wb); err != nil {
		return err
	}
	return enc.Close()
}
