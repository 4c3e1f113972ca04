package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMap = `# comment lines are skipped
direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment
rx,0x310,TEMP_1,20,4,temp_c,0,16,little,false,0.01,-50,-50,200,90,degC,
rx,0x310,TEMP_1,20,4,yaw_rps,16,16,little,true,0.001,0,-30,30,0,rad/s,
tx,784,CMD_1,100,3,steer,0,16,little,true,0.0001,0,-1,1,0,ratio,
tx,784,CMD_1,100,3,gear,16,8,little,true,1,0,-1,8,0,gear,
`

func parseTestMap(t *testing.T) *CANMap {
	t.Helper()
	m, err := ParseCANMap(strings.NewReader(testMap))
	require.NoError(t, err)
	return m
}

func TestParseCANMap(t *testing.T) {
	m := parseTestMap(t)

	assert.Equal(t, []string{"CMD_1", "TEMP_1"}, m.FrameNames())

	fd, err := m.FrameByName("TEMP_1")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x310), fd.ID)
	assert.Equal(t, DirectionRX, fd.Direction)
	require.Len(t, fd.Signals, 2)
	assert.Equal(t, "temp_c", fd.Signals[0].Name)

	cmd, err := m.FrameByID(784)
	require.NoError(t, err)
	assert.Equal(t, DirectionTX, cmd.Direction)

	_, err = m.FrameByName("NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CMD_1")
}

func TestParseCANMap_Rejects(t *testing.T) {
	header := "direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment\n"
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"missing column", "direction,frame_id\nrx,1\n", "missing required column"},
		{"bad direction", header + "both,0x1,F,10,2,s,0,8,little,false,1,0,0,1,0,,\n", "unknown direction"},
		{"big endian", header + "rx,0x1,F,10,2,s,0,8,big,false,1,0,0,1,0,,\n", "endianness"},
		{"zero factor", header + "rx,0x1,F,10,2,s,0,8,little,false,0,0,0,1,0,,\n", "factor"},
		{"signal past dlc", header + "rx,0x1,F,10,1,s,4,8,little,false,1,0,0,1,0,,\n", "exceed dlc"},
		{"bad id", header + "rx,zz,F,10,1,s,0,8,little,false,1,0,0,1,0,,\n", "frame_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCANMap(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	m := parseTestMap(t)

	f, err := m.EncodeEinrideFrame("TEMP_1", map[string]float64{"temp_c": 112.37, "yaw_rps": -2.125})
	require.NoError(t, err)
	assert.Equal(t, uint8(4), f.Length)

	fd, v, err := m.DecodeEinrideFrame(f)
	require.NoError(t, err)
	assert.Equal(t, "TEMP_1", fd.Name)
	assert.InDelta(t, 112.37, v["temp_c"], 1e-9)
	assert.InDelta(t, -2.125, v["yaw_rps"], 1e-9)
}

func TestEncode_DefaultsAndClamping(t *testing.T) {
	m := parseTestMap(t)

	payload, id, err := m.EncodeFrame("TEMP_1", map[string]float64{"yaw_rps": 99})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x310), id)

	v, err := m.DecodeFrame(id, payload)
	require.NoError(t, err)
	assert.InDelta(t, 90, v["temp_c"], 1e-9, "missing signal takes its default")
	assert.InDelta(t, 30, v["yaw_rps"], 1e-9, "value clamped to the map max")

	payload, _, err = m.EncodeFrame("CMD_1", map[string]float64{"steer": -3, "gear": -1})
	require.NoError(t, err)
	v, err = m.DecodeFrame(784, payload)
	require.NoError(t, err)
	assert.InDelta(t, -1, v["steer"], 1e-9)
	assert.Equal(t, -1.0, v["gear"])
}

func TestEncode_Errors(t *testing.T) {
	m := parseTestMap(t)

	_, _, err := m.EncodeFrame("CMD_1", map[string]float64{"throttle": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no signal "throttle"`)

	_, err = m.DecodeFrame(0x310, []byte{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects DLC 4")

	_, err = m.DecodeFrame(0x999, []byte{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestBitHelpers(t *testing.T) {
	assert.Equal(t, int64(-1), signExtend(0xFF, 8, true))
	assert.Equal(t, int64(255), signExtend(0xFF, 8, false))
	assert.Equal(t, int64(127), saturateRaw(500, 8, true))
	assert.Equal(t, int64(-128), saturateRaw(-500, 8, true))
	assert.Equal(t, int64(0), saturateRaw(-5, 8, false))
	assert.Equal(t, uint64(0xAB00), insertBits(0, 8, 8, 0xAB))
	assert.Equal(t, uint64(0xAB), extractBits(0xAB00, 8, 8))
	assert.Equal(t, 1.0, ClampFloat(3, -1, 1))
}
