package projectfs_test

import (
	"context"
	"fmt"
	"log"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
)

func Example() {
	ctx := context.Background()
	store, err := projectfs.NewMemStore()
	if err != nil {
		log.Fatal(err)
	}
	fsys := projectfs.New(store)

	first, _ := fsys.WriteFile(ctx, "/proj/contracts/main.fc", []byte("() main() {}"), projectfs.WriteOptions{})
	second, _ := fsys.WriteFile(ctx, "/proj/contracts/main.fc", []byte("() main() {}"), projectfs.WriteOptions{})
	fmt.Println(first)
	fmt.Println(second)

	_, _ = fsys.WriteFile(ctx, "/proj/draft.ts", []byte("let x = 1"), projectfs.WriteOptions{Virtual: true})

	entries, err := fsys.ReadDir(ctx, "/proj", projectfs.ReadDirOptions{Recursive: true})
	if err != nil {
		log.Fatal(err)
	}
	for _, e := range entries {
		fmt.Println(e)
	}
	// Output:
	// /proj/contracts/main.fc
	// /proj/contracts/main(1).fc
	// contracts
	// contracts/main(1).fc
	// contracts/main.fc
	// draft.ts
}

func ExampleFS_Mkdir() {
	ctx := context.Background()
	store, _ := projectfs.NewMemStore()
	fsys := projectfs.New(store)

	for i := 0; i < 3; i++ {
		name, err := fsys.Mkdir(ctx, "/proj/new", projectfs.MkdirOptions{})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(name)
	}
	// Output:
	// /proj/new
	// /proj/new(1)
	// /proj/new(2)
}

func ExampleFS_Persist() {
	ctx := context.Background()
	store, _ := projectfs.NewMemStore()
	fsys := projectfs.New(store)

	_, _ = fsys.WriteFile(ctx, "/build/out.json", []byte("{}"), projectfs.WriteOptions{Virtual: true})
	fmt.Println(fsys.IsVirtual("/build/out.json"))

	if err := fsys.Persist(ctx, "/build/out.json"); err != nil {
		log.Fatal(err)
	}
	data, _ := store.ReadFile(ctx, "/build/out.json")
	fmt.Println(fsys.IsVirtual("/build/out.json"), string(data))
	// Output:
	// true
	// false {}
}

func ExampleFS_ReadDir() {
	ctx := context.Background()
	store, _ := projectfs.NewMemStore()
	fsys := projectfs.New(store)

	_, _ = fsys.WriteFile(ctx, "/proj/src/main.fc", []byte("() main() {}"), projectfs.WriteOptions{Overwrite: true})
	_, _ = fsys.WriteFile(ctx, "/proj/notes.md", []byte("todo"), projectfs.WriteOptions{Virtual: true})
	_, _ = fsys.WriteFile(ctx, "/proj/build/out.json", []byte("{}"), projectfs.WriteOptions{Virtual: true})

	names, _ := fsys.ReadDir(ctx, "/proj", projectfs.ReadDirOptions{})
	fmt.Println(names)
	// Output:
	// [notes.md src]
}
