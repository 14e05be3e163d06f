package obd

// decodePercent implements the 0..100% linear scaling shared by several
// PIDs: A * 100 / 255.
func decodePercent(data []byte) (Reading, error) {
	if len(data) < 1 {
		return Reading{}, obdErr("short PID payload")
	}
	return Reading{Value: float64(data[0]) * 100 / 255, Unit: "%"}, nil
}

// decodeTemperature implements A - 40, in degrees Celsius.
func decodeTemperature(data []byte) (Reading, error) {
	if len(data) < 1 {
		return Reading{}, obdErr("short PID payload")
	}
	return Reading{Value: float64(data[0]) - 40, Unit: "C"}, nil
}

// decodeTemperatureOffset40 is the same formula as decodeTemperature,
// retained as a distinct name because PID 0x5C is specified independently
// of 0x05/0x0F in the standard's PID table.
func decodeTemperatureOffset40(data []byte) (Reading, error) {
	return decodeTemperature(data)
}

// decodeRPM implements (256*A + B) / 4.
func decodeRPM(data []byte) (Reading, error) {
	if len(data) < 2 {
		return Reading{}, obdErr("short PID payload")
	}
	return Reading{Value: (float64(data[0])*256 + float64(data[1])) / 4, Unit: "rpm"}, nil
}

// decodeSpeed implements A, in km/h.
func decodeSpeed(data []byte) (Reading, error) {
	if len(data) < 1 {
		return Reading{}, obdErr("short PID payload")
	}
	return Reading{Value: float64(data[0]), Unit: "km/h"}, nil
}

// decodeMAF implements (256*A + B) / 100, in grams/sec.
func decodeMAF(data []byte) (Reading, error) {
	if len(data) < 2 {
		return Reading{}, obdErr("short PID payload")
	}
	return Reading{Value: (float64(data[0])*256 + float64(data[1])) / 100, Unit: "g/s"}, nil
}
