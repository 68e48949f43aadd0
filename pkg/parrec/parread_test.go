package parrec

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const parGeneralInfo = `# === DATA DESCRIPTION FILE ======================================================
# CAUTION - Investigational device.
# Limited by Federal Law to investigational use.
#
# === GENERAL INFORMATION ========================================================
#
.    Patient name                       :   PHANTOM-01
.    Examination name                   :   FlowTest
.    Protocol name                      :   QFLOW_tube
.    Examination date/time              :   2023.05.11 / 14:52:03
.    Series Type                        :   Image   MRSERIES
.    Acquisition nr                     :   4
.    Reconstruction nr                  :   1
.    Scan Duration [sec]                :   182
.    Max. number of cardiac phases      :   1
.    Max. number of echoes              :   1
.    Max. number of slices/locations    :   2
.    Max. number of dynamics            :   3
.    Max. number of mixes               :   1
.    Patient position                   :   Head First Supine
.    Preparation direction              :   Anterior-Posterior
.    Technique                          :   QFLOW
.    Scan resolution  (x, y)            :   128  128
.    Scan mode                          :   2D
.    Repetition time [ms]               :   12.000
.    FOV (ap,fh,rl) [mm]                :   150.000  9.000  150.000
.    Water Fat shift [pixels]           :   1.542
.    Angulation midslice(ap,fh,rl)[degr]:   0.000  0.000  0.000
.    Off Centre midslice(ap,fh,rl) [mm] :   2.400  -12.000  0.000
.    Flow compensation <0=no 1=yes> ?   :   1
.    Presaturation     <0=no 1=yes> ?   :   0
.    Phase encoding velocity [cm/sec]   :   0.000000  0.000000  80.000000
.    MTC               <0=no 1=yes> ?   :   0
.    SPIR              <0=no 1=yes> ?   :   0
.    EPI factor        <0,1=no EPI>     :   1
.    Dynamic scan      <0=no 1=yes> ?   :   1
.    Diffusion         <0=no 1=yes> ?   :   0
.    Diffusion echo time [ms]           :   0.0000
.    Max. number of diffusion values    :   1
.    Max. number of gradient orients    :   1
.    Number of label types   <0=no ASL> :   0
#
# === PIXEL VALUES =============================================================
#  PV = pixel value in REC file, FP = floating point value, DV = displayed value on console
#  DV = PV * RS + RI             FP = DV / (RS * SS)
#
# === IMAGE INFORMATION ==========================================================
`

// imageRow renders one 48-column image-information row.
func imageRow(slice, dynamic, typeMR, index int) string {
	return fmt.Sprintf("  %d   1    %d  1 %d 4     %d  16    100  128  128   0.00000   1.52588 1070 1860"+
		"  0.000  0.000  0.000   2.400 -12.000   0.000  8.000  1.000 0 1 0 2"+
		"  1.172  1.172   5.41   0.00   0.00    0.00   1   10.00   0  0  0  0   0.0  1   1 0 0  0.000  0.000  0.000  1",
		slice, dynamic, typeMR, index)
}

// flowPar builds a flow-encoded PAR file: 2 slices, 3 dynamics, frames
// interleaved magnitude (type 0) / phase (type 3).
func flowPar() string {
	var b strings.Builder
	b.WriteString(parGeneralInfo)
	idx := 0
	for slice := 1; slice <= 2; slice++ {
		for dyn := 1; dyn <= 3; dyn++ {
			for _, typeMR := range []int{0, 3} {
				b.WriteString(imageRow(slice, dyn, typeMR, idx))
				b.WriteString("\n")
				idx++
			}
		}
	}
	b.WriteString("\n# === END OF DATA DESCRIPTION FILE ===============================================\n")
	return b.String()
}

func TestParsePar(t *testing.T) {
	h, err := ParsePar(strings.NewReader(flowPar()))
	require.NoError(t, err)

	t.Run("GeneralInformation", func(t *testing.T) {
		require.Equal(t, "PHANTOM-01", h.PatientName)
		require.Equal(t, "QFLOW_tube", h.ProtocolName)
		require.Equal(t, "Image   MRSERIES", h.SeriesDataType)
		require.Equal(t, "QFLOW", h.Technique)
		require.Equal(t, 2, h.MaxNumberOfSlices)
		require.Equal(t, 3, h.MaxNumberOfDynamics)
		require.Equal(t, 1, h.MaxNumberOfEchoes)
		require.Equal(t, [2]int{128, 128}, h.ScanResolution)
		require.Equal(t, 12.0, h.RepetitionTime)
		require.Equal(t, [3]float64{150, 9, 150}, h.FOV)
		require.Equal(t, [3]float64{0, 0, 80}, h.PhaseEncodingVelocity)
		require.True(t, h.FlowEncoded())
		require.Equal(t, 1, h.FlowAxes())
		require.Equal(t, 1, h.DynamicScan)
		require.Equal(t, 0, h.Diffusion)
	})

	t.Run("ImageRecords", func(t *testing.T) {
		require.Len(t, h.ImageRecords, 12)
		require.Equal(t, 6, h.FramesPerSlice())

		first := h.ImageRecords[0]
		require.Equal(t, 1, first.SliceNumber)
		require.Equal(t, 1, first.DynamicScanNumber)
		require.Equal(t, 0, first.ImageTypeMR)
		require.Equal(t, 16, first.ImagePixelSize)
		require.Equal(t, [2]int{128, 128}, first.ReconResolution)
		require.Equal(t, 0.0, first.RescaleIntercept)
		require.Equal(t, 1.52588, first.RescaleSlope)
		require.Equal(t, [2]float64{1.172, 1.172}, first.PixelSpacing)
		require.Equal(t, 8.0, first.SliceThickness)

		// Interleave key: odd rows are phase images.
		require.Equal(t, 3, h.ImageRecords[1].ImageTypeMR)
	})

	t.Run("HeaderMethods", func(t *testing.T) {
		require.Equal(t, 128, h.Rows())
		require.Equal(t, 128, h.Columns())
		require.Equal(t, 80.0, h.EncodingVelocityMagnitude())
		require.Equal(t, 1.52588, h.RescaleSlope())
		require.Equal(t, 0.0, h.RescaleIntercept())
	})
}

func TestParseParErrors(t *testing.T) {
	t.Run("TruncatedImageRow", func(t *testing.T) {
		content := parGeneralInfo + "  1   1    1  1 0 4     0  16    100  128  128\n"
		_, err := ParsePar(strings.NewReader(content))
		require.Error(t, err)
		require.Contains(t, err.Error(), "columns")
	})

	t.Run("NonNumericColumn", func(t *testing.T) {
		row := imageRow(1, 1, 0, 0)
		row = strings.Replace(row, "16", "xx", 1)
		_, err := ParsePar(strings.NewReader(parGeneralInfo + row + "\n"))
		require.Error(t, err)
	})

	t.Run("NoImageRecords", func(t *testing.T) {
		_, err := ParsePar(strings.NewReader(parGeneralInfo))
		require.Error(t, err)
	})

	t.Run("RecordCountNotDivisibleBySlices", func(t *testing.T) {
		// 2 slices declared but 5 records stored.
		var b strings.Builder
		b.WriteString(parGeneralInfo)
		for i := 0; i < 5; i++ {
			b.WriteString(imageRow(1, i+1, 0, i))
			b.WriteString("\n")
		}
		_, err := ParsePar(strings.NewReader(b.String()))
		require.Error(t, err)
		require.Contains(t, err.Error(), "not divisible")
	})

	t.Run("BadGeneralValue", func(t *testing.T) {
		content := strings.Replace(flowPar(),
			".    Max. number of dynamics            :   3",
			".    Max. number of dynamics            :   three", 1)
		_, err := ParsePar(strings.NewReader(content))
		require.Error(t, err)
	})
}
