// Package drive_tools exposes the Google Drive client to MCP clients.
//
// Read tools are always registered:
//   - drive_search_files: run a raw Drive query
//   - drive_find_files: name-based search with folder/file filtering
//   - drive_list_folder: list a folder, optionally recursively
//   - drive_get_file: metadata for one file
//   - drive_download_file: file content inline or to a local path
//   - drive_download_folder: mirror a folder into a local directory
//
// Write tools are registered only when the server is not read-only:
//   - drive_upload_file
//   - drive_create_folder
//   - drive_delete_files
//
// Local paths are resolved inside the server's download directory.
//
// Example tool usage:
//
//	drive_find_files({
//	  search: "budget+2024+!draft",
//	  type: "files"
//	})
//
//	drive_download_folder({
//	  folder_id: "1AbCdEf",
//	  output_path: "exports/q3"
//	})
package drive_tools
