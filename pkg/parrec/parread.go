// Package parrec reads the vendor PAR/REC pair: a text header describing
// the acquisition and a flat binary pixel buffer. It hands back a
// validated header record and the raw numeric buffer; all interpretation
// of the buffer happens downstream.
package parrec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mrimate/internal/models"
)

// ReadPar reads and parses a PAR header file. The returned header has
// been validated.
func ReadPar(path string) (*models.AcquisitionHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePar(f)
}

// ParsePar parses a PAR header from r. General-information lines (those
// starting with a '.') are matched by field label; image-information
// lines are positional rows of numbers, one per stored 2D image.
func ParsePar(r io.Reader) (*models.AcquisitionHeader, error) {
	h := &models.AcquisitionHeader{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "."):
			if err := parseGeneralLine(h, line); err != nil {
				return nil, fmt.Errorf("parrec: line %d: %w", lineNo, err)
			}
		default:
			rec, err := parseImageRow(line)
			if err != nil {
				return nil, fmt.Errorf("parrec: line %d: %w", lineNo, err)
			}
			h.ImageRecords = append(h.ImageRecords, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parrec: %w", err)
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// parseGeneralLine handles one ".  <label> : <value>" line. Unknown
// labels are ignored so minor PAR revisions do not break parsing.
func parseGeneralLine(h *models.AcquisitionHeader, line string) error {
	body := strings.TrimSpace(strings.TrimPrefix(line, "."))
	label, value, ok := strings.Cut(body, ":")
	if !ok {
		return fmt.Errorf("general information line without ':' separator")
	}
	value = strings.TrimSpace(value)

	var err error
	switch cleanLabel(label) {
	case "Patient name":
		h.PatientName = value
	case "Examination name":
		h.ExaminationName = value
	case "Protocol name":
		h.ProtocolName = value
	case "Examination date/time":
		h.ExaminationDateTime = value
	case "Series Type":
		h.SeriesDataType = value
	case "Acquisition nr":
		h.AcquisitionNr, err = strconv.Atoi(value)
	case "Reconstruction nr":
		h.ReconstructionNr, err = strconv.Atoi(value)
	case "Scan Duration":
		h.ScanDuration, err = strconv.ParseFloat(value, 64)
	case "Max. number of cardiac phases":
		h.MaxNumberOfCardiacPhases, err = strconv.Atoi(value)
	case "Max. number of echoes":
		h.MaxNumberOfEchoes, err = strconv.Atoi(value)
	case "Max. number of slices/locations":
		h.MaxNumberOfSlices, err = strconv.Atoi(value)
	case "Max. number of dynamics":
		h.MaxNumberOfDynamics, err = strconv.Atoi(value)
	case "Max. number of mixes":
		h.MaxNumberOfMixes, err = strconv.Atoi(value)
	case "Patient position":
		h.PatientPosition = value
	case "Preparation direction":
		h.PreparationDirection = value
	case "Technique":
		h.Technique = value
	case "Scan resolution":
		err = parseIntPair(value, &h.ScanResolution)
	case "Scan mode":
		h.ScanMode = value
	case "Repetition time":
		h.RepetitionTime, err = strconv.ParseFloat(value, 64)
	case "FOV":
		err = parseFloatTriple(value, &h.FOV)
	case "Water Fat shift":
		h.WaterFatShift, err = strconv.ParseFloat(value, 64)
	case "Angulation midslice":
		err = parseFloatTriple(value, &h.AngulationMidslice)
	case "Off Centre midslice":
		err = parseFloatTriple(value, &h.OffCentreMidslice)
	case "Flow compensation":
		h.FlowCompensation, err = strconv.Atoi(value)
	case "Presaturation":
		h.Presaturation, err = strconv.Atoi(value)
	case "Phase encoding velocity":
		err = parseFloatTriple(value, &h.PhaseEncodingVelocity)
	case "MTC":
		h.MTC, err = strconv.Atoi(value)
	case "SPIR":
		h.SPIR, err = strconv.Atoi(value)
	case "EPI factor":
		h.EPIFactor, err = strconv.Atoi(value)
	case "Dynamic scan":
		h.DynamicScan, err = strconv.Atoi(value)
	case "Diffusion":
		h.Diffusion, err = strconv.Atoi(value)
	case "Diffusion echo time":
		h.DiffusionEchoTime, err = strconv.ParseFloat(value, 64)
	case "Max. number of diffusion values":
		h.MaxNumberOfDiffusionValues, err = strconv.Atoi(value)
	case "Max. number of gradient orients":
		h.MaxNumberOfGradientOrients, err = strconv.Atoi(value)
	case "Number of label types":
		h.NumberOfLabelTypes, err = strconv.Atoi(value)
	}
	if err != nil {
		return fmt.Errorf("parsing %q value %q: %w", strings.TrimSpace(label), value, err)
	}
	return nil
}

// cleanLabel strips the unit/legend suffix of a PAR field label, e.g.
// "Scan resolution  (x, y)" -> "Scan resolution" and
// "Dynamic scan      <0=no 1=yes> ?" -> "Dynamic scan".
func cleanLabel(label string) string {
	if i := strings.IndexAny(label, "([<"); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}

func parseIntPair(value string, dst *[2]int) error {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return fmt.Errorf("expected 2 values, got %d", len(fields))
	}
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func parseFloatTriple(value string, dst *[3]float64) error {
	fields := strings.Fields(value)
	if len(fields) != 3 {
		return fmt.Errorf("expected 3 values, got %d", len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

// imageRowColumns is the column count of one image-information row in
// the PAR revision this reader targets.
const imageRowColumns = 48

// rowScanner walks the whitespace-separated fields of an image row,
// recording the first conversion error instead of failing on each call.
type rowScanner struct {
	fields []string
	pos    int
	err    error
}

func (s *rowScanner) next() string {
	if s.err != nil {
		return ""
	}
	if s.pos >= len(s.fields) {
		s.err = fmt.Errorf("row ended after %d columns", s.pos)
		return ""
	}
	f := s.fields[s.pos]
	s.pos++
	return f
}

func (s *rowScanner) int() int {
	f := s.next()
	if s.err != nil {
		return 0
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		s.err = fmt.Errorf("column %d: %w", s.pos, err)
		return 0
	}
	return v
}

func (s *rowScanner) float() float64 {
	f := s.next()
	if s.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		s.err = fmt.Errorf("column %d: %w", s.pos, err)
		return 0
	}
	return v
}

func (s *rowScanner) intPair() [2]int {
	return [2]int{s.int(), s.int()}
}

func (s *rowScanner) floatPair() [2]float64 {
	return [2]float64{s.float(), s.float()}
}

func (s *rowScanner) floatTriple() [3]float64 {
	return [3]float64{s.float(), s.float(), s.float()}
}

// parseImageRow parses one positional image-information row.
func parseImageRow(line string) (models.ImageRecord, error) {
	s := &rowScanner{fields: strings.Fields(line)}
	if len(s.fields) != imageRowColumns {
		return models.ImageRecord{}, fmt.Errorf("image row has %d columns, expected %d",
			len(s.fields), imageRowColumns)
	}

	rec := models.ImageRecord{
		SliceNumber:               s.int(),
		EchoNumber:                s.int(),
		DynamicScanNumber:         s.int(),
		CardiacPhaseNumber:        s.int(),
		ImageTypeMR:               s.int(),
		ScanningSequence:          s.int(),
		IndexInRec:                s.int(),
		ImagePixelSize:            s.int(),
		ScanPercentage:            s.int(),
		ReconResolution:           s.intPair(),
		RescaleIntercept:          s.float(),
		RescaleSlope:              s.float(),
		WindowCenter:              s.int(),
		WindowWidth:               s.int(),
		ImageAngulation:           s.floatTriple(),
		ImageOffcentre:            s.floatTriple(),
		SliceThickness:            s.float(),
		SliceGap:                  s.float(),
		ImageDisplayOrientation:   s.int(),
		SliceOrientation:          s.int(),
		FmriStatusIndication:      s.int(),
		ImageTypeEdEs:             s.int(),
		PixelSpacing:              s.floatPair(),
		EchoTime:                  s.float(),
		DynScanBeginTime:          s.float(),
		TriggerTime:               s.float(),
		DiffusionBFactor:          s.float(),
		NumberOfAverages:          s.int(),
		ImageFlipAngle:            s.float(),
		CardiacFrequency:          s.int(),
		MinimumRRInterval:         s.int(),
		MaximumRRInterval:         s.int(),
		TurboFactor:               s.int(),
		InversionDelay:            s.float(),
		DiffusionBValueNumber:     s.int(),
		GradientOrientationNumber: s.int(),
		ContrastType:              s.int(),
		DiffusionAnisotropyType:   s.int(),
		Diffusion:                 s.floatTriple(),
		LabelType:                 s.int(),
	}
	if s.err != nil {
		return models.ImageRecord{}, s.err
	}
	return rec, nil
}
