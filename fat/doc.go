// Package fat appends files to existing FAT12, FAT16 and FAT32 file system
// images, which is useful when populating boot media for embedded devices
// such as the Raspberry Pi without mounting the file system.
//
// The volume geometry is read from the boot sector. Files are placed into
// the root directory with a VFAT long file name and an 8.3 short name, and
// their data is stored in contiguous clusters starting at a cluster chosen
// by the caller. There is no free space search: the caller must make sure
// the clusters and directory slots being written are unused.
//
// A Session threads a Cursor through successive WriteFile calls and
// mirrors the primary FAT into the backup copies when closed.
package fat
