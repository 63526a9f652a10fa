package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openlabtools/datamon/pkg/ledger"
)

func TestValidateEEG(t *testing.T) {
	header := "Codepage=UTF-8\n" +
		"DataFile=sub-1_task_eeg_s1_r1_e1.eeg\n" +
		"MarkerFile=sub-1_task_eeg_s1_r1_e1.vmrk\n"

	tests := []struct {
		name      string
		vhdr      string
		wantTypes []string
	}{
		{
			name: "declared files present",
			vhdr: header,
		},
		{
			name: "declared data file absent",
			vhdr: "DataFile=sub-1_task_eeg_s1_r1_e1_old.eeg\n" +
				"MarkerFile=sub-1_task_eeg_s1_r1_e1.vmrk\n",
			wantTypes: []string{ledger.ErrorEEG},
		},
		{
			name: "both declared files absent",
			vhdr: "DataFile=other.eeg\nMarkerFile=other.vmrk\n",
			wantTypes: []string{ledger.ErrorEEG, ledger.ErrorEEG},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dict := loadTestDict(t)
			root := t.TempDir()
			segs := []string{"sourcedata", "raw", "s1_r1", "eeg", "sub-1"}
			addFile(t, root, segs, "sub-1_task_eeg_s1_r1_e1.vhdr", tt.vhdr)
			addFile(t, root, segs, "sub-1_task_eeg_s1_r1_e1.vmrk", "markers")
			addFile(t, root, segs, "sub-1_task_eeg_s1_r1_e1.eeg", "samples")

			records := validateRaw(t, root, dict, nil)
			assert.ElementsMatch(t, tt.wantTypes, errorTypes(records))
			if len(tt.wantTypes) == 0 {
				assert.Equal(t, []string{"sub-1_task_eeg_s1_r1_e1"}, passes(records))
			} else {
				assert.Empty(t, passes(records))
			}
		})
	}
}

func TestValidatePsychopy(t *testing.T) {
	tests := []struct {
		name      string
		csv       string
		wantTypes []string
	}{
		{
			name: "subject column matches",
			csv:  "id,rt\n1,0.52\n1,0.61\n",
		},
		{
			name: "leading zeros tolerated",
			csv:  "participant,rt\n001,0.52\n",
		},
		{
			name: "blank terminal row tolerated",
			csv:  "id,rt\n1,0.52\n,\n",
		},
		{
			name:      "subject column mismatch",
			csv:       "id,rt\n2,0.52\n",
			wantTypes: []string{ledger.ErrorPsychopy},
		},
		{
			name:      "blank interior row flagged",
			csv:       "id,rt\n1,0.52\n,\n1,0.61\n",
			wantTypes: []string{ledger.ErrorPsychopy},
		},
		{
			name: "no subject column is not checked",
			csv:  "trial,rt\n7,0.52\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dict := loadTestDict(t)
			root := t.TempDir()
			addFile(t, root, []string{"sourcedata", "raw", "s1_r1", "psychopy", "sub-1"},
				"sub-1_memory_psychopy_s1_r1_e1.csv", tt.csv)

			records := validateRaw(t, root, dict, nil)
			assert.ElementsMatch(t, tt.wantTypes, errorTypes(records))
		})
	}
}
