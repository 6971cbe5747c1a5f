// Package files locates export workbooks on disk.
//
// Discovery lists .xlsx files in the download directory and picks the most
// recently modified one, which is the canonical input to transformation when
// several exports have accumulated.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.ExecutableDir)
//	latest, err := discovery.LatestExcelFile("output")
package files
