// Package adccal characterizes the ESP32 ADC transfer curve and converts
// raw readings to millivolts.
//
// Three schemes are tried in order, the first whose data exists wins:
//
//   - SchemeTwoPoint: two factory readings burnt into eFuse BLOCK3
//   - SchemeEfuseVref: the reference voltage burnt into eFuse BLOCK0
//   - SchemeDefaultVref: a reference voltage supplied by the caller,
//     usually measured once per board with the reference router
//
// The curve is linear: mV = (CoeffA * raw12 + 2^15) / 2^16 + CoeffB, with
// raw12 the reading scaled to 12 bits. Selection is a pure function of
// the eFuse snapshot and never fails.
package adccal
