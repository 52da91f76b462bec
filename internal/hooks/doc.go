// Package hooks activates components by running the shell commands from
// their manifests.
//
// Hook commands are text/template strings with the sprig function set. The
// template sees the component's ID, Name, Version and Provides:
//
//	hooks:
//	  start: "systemctl --user start {{ .Name | lower }}.service"
//	  stop: "systemctl --user stop {{ .Name | lower }}.service"
//
// A start hook that exits 0 means the component started. Any other exit
// status, a timeout or a render error is a refused start. Each hook also
// gets PLUGINRUNNER_COMPONENT_ID, PLUGINRUNNER_COMPONENT_NAME and
// PLUGINRUNNER_HOOK in its environment.
package hooks
