package checkpointer

import "fmt"

// FilenameEnumerator returns a function generating filenames with an
// increasing integer suffix. The first call yields start+1, so
// FilenameEnumerator(0, "agent", ".bin") produces "agent1.bin",
// "agent2.bin", and so on. The name parameter may include a directory
// path, and the extension should include its leading dot.
func FilenameEnumerator(start int, name, extension string) func() string {
	i := start
	return func() string {
		i++
		return fmt.Sprintf("%s%d%s", name, i, extension)
	}
}
