// Package drive queries storage drives for power state and temperature
// without waking them.
//
// Power probes parse `hdparm -C` or issue ATA CHECK POWER MODE through the
// SG_IO ioctl. Temperature readers cover the drivetemp hwmon driver,
// `hdparm -H`, `smartctl -n standby` and a running hddtemp daemon. NewTempReader
// picks one at configuration time.
package drive
