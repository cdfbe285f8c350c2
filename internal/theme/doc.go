// Package theme injects a page stylesheet into every window. Themes are
// bundled CSS files or user files under ~/.config/hostbridge/themes/, which
// shadow bundled themes of the same name. @import statements are inlined and
// user themes can be hot-reloaded while windows are open.
package theme
