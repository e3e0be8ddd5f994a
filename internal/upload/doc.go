// Package upload archives processed media into the library tree.
package upload
