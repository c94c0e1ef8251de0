package bot

// User-facing copy, kept together so the persona reads consistently.
const (
	msgBusy    = "叔叔還在忙上一件事，等等再跟叔叔說。"
	msgFailure = "叔叔這邊出了點狀況，等等再試一次。"
	msgExit    = "好，下次再找叔叔。"

	msgFetchPrompt  = "想查哪支股票？輸入四位數股票代號，叔叔幫你查。輸入0就不查了。"
	msgFetchInvalid = "沒有這支股票，不要騙叔叔。輸入四位數代號再試一次。"

	msgChatPrompt = "快跟叔叔說說話吧。按r讓叔叔失憶，或按0退出。"
	msgChatHint   = "按r讓叔叔失憶，或按0退出"
	msgChatReset  = "叔叔已經忘光了，重新開始吧。"

	msgPredictPrompt       = "想分析哪支股票？輸入四位數股票代號，或輸入0退出。"
	msgPredictNoData       = "這支股票查不到歷史資料，換一支再試試。"
	msgPredictEpochsPrompt = "資料準備好了，要訓練幾輪？輸入1到999的數字。"
	msgPredictBadEpochs    = "訓練輪數要是1到999的數字，再輸入一次。"

	chatSeparator = "\n===================\n"
)
